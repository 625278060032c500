package pipeline

import "errors"

// Ошибки pipeline. Все они означают сбой инфраструктуры или программы,
// а не отклонение данных: отклонение возвращается в Result.
var (
	// ErrInvalidConfig — конфигурация run не прошла проверку.
	ErrInvalidConfig = errors.New("invalid pipeline config")

	// ErrFetch — не удалось получить сырые данные.
	ErrFetch = errors.New("fetch raw data")

	// ErrDecode — источник вернул не JSON-объект.
	ErrDecode = errors.New("decode raw data")

	// ErrStore — не удалось сохранить артефакт.
	ErrStore = errors.New("store artifact")

	// ErrTransform — неожиданная ошибка очистки или агрегации.
	ErrTransform = errors.New("transform record")

	// ErrNotify — уведомление не доставлено при политике fail.
	ErrNotify = errors.New("notify")

	// ErrStageTransition — нарушен порядок этапов.
	ErrStageTransition = errors.New("invalid stage transition")
)
