// Package storage записывает артефакты pipeline в object storage.
//
// Backend выбирается по location: s3:// (AWS S3 или S3-совместимый),
// gs:// (Google Cloud Storage) или путь в файловой системе.
// Put возвращает location объекта, по которому его можно найти:
// URL для облачных хранилищ и абсолютный путь для файловой системы.
package storage
