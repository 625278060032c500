package storage

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore сохраняет объекты в Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore создаёт GCSStore с Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, ErrMissingBucket
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Backend реализует Store.
func (s *GCSStore) Backend() string {
	return SchemeGCS
}

// Put реализует Store.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	objectKey := ObjectKey(s.prefix, key)

	w := s.client.Bucket(s.bucket).Object(objectKey).NewWriter(ctx)
	w.ContentType = contentType
	// Артефакты маленькие: одна загрузка без чанков.
	w.ChunkSize = 0

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("%w: gs://%s/%s: %v", ErrPut, s.bucket, objectKey, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: gs://%s/%s: %v", ErrPut, s.bucket, objectKey, err)
	}
	return GCSURL(s.bucket, objectKey), nil
}

// Close закрывает клиент.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// GCSURL возвращает публичный адрес объекта.
func GCSURL(bucket, objectKey string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + objectKey
}
