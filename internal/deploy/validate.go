package deploy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/mq"
)

// DefaultWorkPool — пул, если в описании он не указан.
const DefaultWorkPool = "default"

// KnownFlows — flow, которые умеет исполнять воркер.
var KnownFlows = []string{domain.FlowETLPipeline, domain.FlowDataProcessing}

// ApplyDefaults заполняет необязательные поля.
func ApplyDefaults(d *domain.Deployment) {
	d.Name = strings.TrimSpace(d.Name)
	if d.WorkPool == "" {
		d.WorkPool = DefaultWorkPool
	}
}

// Validate проверяет deployment.
func Validate(d *domain.Deployment) error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDeployment)
	}
	if !slices.Contains(KnownFlows, d.Flow) {
		return fmt.Errorf("%w: %q in deployment %s", ErrUnknownFlow, d.Flow, d.Name)
	}
	if err := mq.ValidatePoolName(d.WorkPool); err != nil {
		return fmt.Errorf("%w: deployment %s: %v", ErrInvalidDeployment, d.Name, err)
	}
	if d.Retries < 0 {
		return fmt.Errorf("%w: deployment %s: retries must be >= 0", ErrInvalidDeployment, d.Name)
	}
	if d.RetryDelaySec < 0 {
		return fmt.Errorf("%w: deployment %s: retry_delay_sec must be >= 0", ErrInvalidDeployment, d.Name)
	}
	if d.Schedule != "" {
		if err := ValidateSchedule(d.Schedule); err != nil {
			return fmt.Errorf("deployment %s: %w", d.Name, err)
		}
	}
	if d.Flow == domain.FlowETLPipeline {
		// repository и output_location могут прийти при запуске,
		// здесь проверяем только порог.
		if _, err := domain.ConfigFromParameters(d.Parameters); err != nil {
			return fmt.Errorf("%w: deployment %s: %v", ErrInvalidDeployment, d.Name, err)
		}
	}
	return nil
}
