// Package blob работает с общим хранилищем медиа: загруженные файлы
// и аннотированные артефакты лежат в MinIO, путь вида bucket/object.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound возвращается, когда объекта нет в хранилище.
var ErrNotFound = errors.New("blob: object not found")

type Client struct {
	client *minio.Client
}

func NewMinioClient(endpoint, accessKey, secretKey string) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{client: client}, nil
}

// EnsureBucket создаёт бакет, если его ещё нет.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// Upload кладёт поток в бакет и возвращает путь bucket/object.
func (c *Client) Upload(ctx context.Context, bucket, object string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := c.client.PutObject(ctx, bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s/%s: %w", bucket, object, err)
	}

	return bucket + "/" + object, nil
}

// UploadFile загружает локальный файл, размер берётся из Stat.
func (c *Client) UploadFile(ctx context.Context, bucket, object, localPath, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	return c.Upload(ctx, bucket, object, f, info.Size(), contentType)
}

// Stat проверяет наличие объекта по пути bucket/object.
// Отсутствие объекта — ErrNotFound, остальное — ошибка хранилища.
func (c *Client) Stat(ctx context.Context, path string) error {
	bucket, object, err := splitPath(path)
	if err != nil {
		return err
	}

	_, err = c.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return ErrNotFound
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return nil
}

// Download скачивает объект во временный файл и возвращает его путь.
// Удаление временного файла — на вызывающем.
func (c *Client) Download(ctx context.Context, path, localDir string) (string, error) {
	bucket, object, err := splitPath(path)
	if err != nil {
		return "", err
	}

	obj, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", path, err)
	}
	defer obj.Close()

	base := object
	if idx := strings.LastIndex(object, "/"); idx >= 0 {
		base = object[idx+1:]
	}
	local, err := os.CreateTemp(localDir, "media-*-"+base)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(local, obj); err != nil {
		local.Close()
		os.Remove(local.Name())
		return "", fmt.Errorf("failed to download %s: %w", path, err)
	}
	if err := local.Close(); err != nil {
		os.Remove(local.Name())
		return "", err
	}

	return local.Name(), nil
}

func splitPath(path string) (bucket, object string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("blob: invalid path %q", path)
	}
	return parts[0], parts[1], nil
}
