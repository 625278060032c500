package storage

import "errors"

// Ошибки object storage.
var (
	// ErrUnsupportedScheme — неизвестная схема в location.
	ErrUnsupportedScheme = errors.New("unsupported storage scheme")

	// ErrMissingBucket — в s3:// или gs:// location нет bucket.
	ErrMissingBucket = errors.New("bucket is required")

	// ErrEmptyKey — пустой ключ объекта.
	ErrEmptyKey = errors.New("object key is required")

	// ErrPut — объект не удалось записать.
	ErrPut = errors.New("put object failed")
)
