package deploy

import "errors"

// Ошибки описания deployment.
var (
	// ErrInvalidDeployment — описание не проходит проверку.
	ErrInvalidDeployment = errors.New("invalid deployment")

	// ErrUnknownFlow — flow не зарегистрирован у воркера.
	ErrUnknownFlow = errors.New("unknown flow")

	// ErrInvalidSchedule — некорректное cron-выражение.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrNoDeployments — файл не содержит ни одного deployment.
	ErrNoDeployments = errors.New("no deployments in file")
)
