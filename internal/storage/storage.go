package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Схемы location.
const (
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeLocal = "file"
)

// ContentTypeJSON — тип содержимого всех артефактов pipeline.
const ContentTypeJSON = "application/json"

// Store — запись именованных байтовых объектов.
type Store interface {
	// Put сохраняет объект и возвращает его location (URL или путь).
	// key задаётся относительно префикса store.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Backend возвращает имя backend для логов и метрик: s3, gs, file.
	Backend() string
}

// Location — разобранное место хранения артефактов.
type Location struct {
	Scheme string
	Bucket string // для s3 и gs
	Prefix string // префикс ключей внутри bucket
	Dir    string // для file
}

// ParseLocation разбирает строку вида:
//
//	s3://bucket/prefix
//	gs://bucket/prefix
//	file:///abs/dir
//	./relative/dir
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrUnsupportedScheme)
	}

	if !strings.Contains(raw, "://") {
		return Location{Scheme: SchemeLocal, Dir: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
	}

	switch u.Scheme {
	case SchemeS3, SchemeGCS:
		if u.Host == "" {
			return Location{}, fmt.Errorf("%w: %s", ErrMissingBucket, raw)
		}
		return Location{
			Scheme: u.Scheme,
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		}, nil
	case SchemeLocal:
		dir := u.Path
		if u.Host != "" {
			dir = path.Join(u.Host, u.Path)
		}
		if dir == "" {
			return Location{}, fmt.Errorf("%w: empty file path", ErrUnsupportedScheme)
		}
		return Location{Scheme: SchemeLocal, Dir: dir}, nil
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// String возвращает location в каноническом виде.
func (l Location) String() string {
	switch l.Scheme {
	case SchemeLocal:
		return l.Dir
	default:
		if l.Prefix == "" {
			return l.Scheme + "://" + l.Bucket
		}
		return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
	}
}

// ObjectKey собирает ключ объекта: {prefix}/{key}.
func ObjectKey(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return strings.TrimRight(prefix, "/") + "/" + key
}

// RunKey — ключ артефакта внутри run: {run_id}/{name}.
func RunKey(runID, name string) string {
	return runID + "/" + name
}

// Options — настройки backend'ов.
type Options struct {
	S3 S3Options
}

// Open создаёт Store для location.
func Open(ctx context.Context, location string, opts Options) (Store, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeS3:
		return NewS3Store(ctx, loc.Bucket, loc.Prefix, opts.S3)
	case SchemeGCS:
		return NewGCSStore(ctx, loc.Bucket, loc.Prefix)
	default:
		return NewLocalStore(loc.Dir), nil
	}
}
