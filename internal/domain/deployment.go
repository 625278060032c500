package domain

import "time"

// Имена зарегистрированных flow.
const (
	FlowETLPipeline    = "etl_s3_pipeline"
	FlowDataProcessing = "data_processing_flow"
)

// Deployment — описание flow, развёрнутого на пул воркеров.
//
// Deployment не исполняет расписание сам: Schedule хранится и валидируется,
// а запускать runs по нему — задача внешнего оркестратора.
type Deployment struct {
	// Name — уникальное имя deployment (например, "etl-prefect-daily").
	Name string `json:"name" yaml:"name"`

	// Flow — имя flow из реестра воркера.
	Flow string `json:"flow" yaml:"flow"`

	// Entrypoint — точка входа в исходниках, "path/file:function".
	Entrypoint string `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`

	// Source — откуда брать код flow (git URL или путь).
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// WorkPool — имя пула; runs публикуются в очередь pool.{WorkPool}.
	WorkPool string `json:"work_pool" yaml:"work_pool"`

	// Tags — произвольные метки.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Retries — сколько раз повторять run после инфраструктурной ошибки.
	Retries int `json:"retries" yaml:"retries"`

	// RetryDelaySec — задержка перед повтором в секундах.
	RetryDelaySec int `json:"retry_delay_sec" yaml:"retry_delay_sec"`

	// Schedule — cron-выражение (5 полей), пусто если без расписания.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`

	// Parameters — параметры по умолчанию для каждого run.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// RetryDelay возвращает задержку перед повтором.
func (d *Deployment) RetryDelay() time.Duration {
	return time.Duration(d.RetryDelaySec) * time.Second
}

// CanRetry возвращает true, если после попытки attempt разрешён ещё один повтор.
func (d *Deployment) CanRetry(attempt int) bool {
	return attempt <= d.Retries
}

// MergeParameters возвращает параметры deployment, перекрытые overrides.
func (d *Deployment) MergeParameters(overrides map[string]any) map[string]any {
	out := make(map[string]any, len(d.Parameters)+len(overrides))
	for k, v := range d.Parameters {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
