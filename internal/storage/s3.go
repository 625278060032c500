package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options — настройки S3 клиента.
type S3Options struct {
	Region string

	// Endpoint — S3-совместимый endpoint (MinIO, LocalStack).
	// При заданном Endpoint используется path-style адресация.
	Endpoint string

	// AccessKeyID и SecretAccessKey задают статические ключи.
	// Если пусто, используется стандартная цепочка AWS.
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store сохраняет объекты в AWS S3.
type S3Store struct {
	client   *s3.Client
	bucket   string
	prefix   string
	region   string
	endpoint string
}

// NewS3Store создаёт S3Store.
func NewS3Store(ctx context.Context, bucket, prefix string, opts S3Options) (*S3Store, error) {
	if bucket == "" {
		return nil, ErrMissingBucket
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimRight(opts.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		region:   opts.Region,
		endpoint: endpoint,
	}, nil
}

// Backend реализует Store.
func (s *S3Store) Backend() string {
	return SchemeS3
}

// Put реализует Store.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	objectKey := ObjectKey(s.prefix, key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3://%s/%s: %v", ErrPut, s.bucket, objectKey, err)
	}
	return s.URL(objectKey), nil
}

// URL возвращает адрес объекта.
//
//	https://{bucket}.s3.{region}.amazonaws.com/{key}
//	{endpoint}/{bucket}/{key} для S3-совместимых хранилищ
func (s *S3Store) URL(objectKey string) string {
	if s.endpoint != "" {
		return s.endpoint + "/" + s.bucket + "/" + objectKey
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, objectKey)
}
