package queue

import (
	"encoding/json"
	"fmt"

	"github.com/GERARD818/Watcher-AI/internal/models"
	"github.com/IBM/sarama"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer создаёт продюсер с настройками. RequiredAcks=WaitForAll:
// задача считается поставленной только после подтверждения брокером.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: producer,
		topic:    topic,
	}, nil
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// Enqueue отправляет задачу в очередь и возвращает её смещение в партиции —
// оценочную позицию в очереди. Ключ — event_id, порядок внутри партиции FIFO.
func (p *Producer) Enqueue(task models.Task) (int64, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return 0, err
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(task.EventID),
		Value: sarama.ByteEncoder(payload),
	}

	_, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		return 0, err
	}

	return offset, nil
}
