package queue

import (
	"context"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// Message — одно сообщение очереди. Ack подтверждает обработку;
// неподтверждённое сообщение будет доставлено повторно (at-least-once).
type Message struct {
	Value []byte
	Ack   func()
}

// Consumer оборачивает Sarama ConsumerGroup. Блокирующее чтение из
// Messages() — единственная точка взаимного исключения между воркерами:
// партиция назначается ровно одному участнику группы.
type Consumer struct {
	group          sarama.ConsumerGroup
	topic          string
	reconnectDelay time.Duration
	messages       chan Message
	closed         chan struct{}
}

// NewConsumer создаёт и возвращает новый Consumer
func NewConsumer(brokers []string, groupID, topic string, reconnectDelay time.Duration) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:          group,
		topic:          topic,
		reconnectDelay: reconnectDelay,
		messages:       make(chan Message),
		closed:         make(chan struct{}),
	}, nil
}

// StartListening запускает асинхронное потребление сообщений.
// При потере соединения с брокером потребитель переподключается
// с постоянной задержкой, без верхней границы: воркер — долгоживущий
// сервис и должен пережить недоступность брокера.
func (c *Consumer) StartListening(ctx context.Context) {
	handler := &consumerGroupHandler{
		messages: c.messages,
		closed:   c.closed,
	}

	go func() {
		defer close(c.messages)

		for {
			select {
			case <-ctx.Done():
				log.Println("Consumer: context cancelled, stopping")
				return
			default:
				log.Println("Consumer: starting consumption cycle")
				err := c.group.Consume(ctx, []string{c.topic}, handler)
				if err != nil {
					log.Printf("Consume error: %v, retrying in %v", err, c.reconnectDelay)
					select {
					case <-ctx.Done():
						return
					case <-time.After(c.reconnectDelay):
					}
					continue
				}

				if ctx.Err() != nil {
					return
				}
			}
		}
	}()
}

// Close останавливает потребитель и освобождает ресурсы
func (c *Consumer) Close() error {
	close(c.closed)
	return c.group.Close()
}

// Messages возвращает канал для чтения сообщений
func (c *Consumer) Messages() <-chan Message {
	return c.messages
}

// consumerGroupHandler реализует интерфейс sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	messages chan<- Message
	closed   <-chan struct{}
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			out := Message{
				Value: msg.Value,
				Ack: func() {
					sess.MarkMessage(msg, "")
				},
			}
			select {
			case h.messages <- out:
				// Подтверждение — после обработки, через Ack
			case <-sess.Context().Done():
				return nil
			case <-h.closed:
				return nil
			}
		case <-sess.Context().Done():
			return nil
		case <-h.closed:
			return nil
		}
	}
}
