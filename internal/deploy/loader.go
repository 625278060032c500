package deploy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/etlflows/internal/domain"
)

// DefaultFile — имя файла описаний по умолчанию.
const DefaultFile = "deployment.yaml"

// File — содержимое deployment.yaml.
//
//	deployments:
//	  - name: github-stats-daily
//	    flow: etl_s3_pipeline
//	    work_pool: default
//	    retries: 3
//	    retry_delay_sec: 60
//	    schedule: "0 6 * * *"
//	    parameters:
//	      repository: PrefectHQ/prefect
//	      output_location: s3://etl-artifacts/github
type File struct {
	Deployments []domain.Deployment `yaml:"deployments"`
}

// LoadFile читает и проверяет файл описаний.
func LoadFile(path string) ([]domain.Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает YAML и проверяет каждый deployment.
// Неизвестные ключи считаются ошибкой.
func Parse(data []byte) ([]domain.Deployment, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoDeployments
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeployment, err)
	}
	if len(file.Deployments) == 0 {
		return nil, ErrNoDeployments
	}

	seen := make(map[string]bool, len(file.Deployments))
	for i := range file.Deployments {
		d := &file.Deployments[i]
		ApplyDefaults(d)
		if err := Validate(d); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidDeployment, d.Name)
		}
		seen[d.Name] = true
	}
	return file.Deployments, nil
}

// Marshal сериализует deployments обратно в YAML.
func Marshal(deployments []domain.Deployment) ([]byte, error) {
	return yaml.Marshal(File{Deployments: deployments})
}
