package deploy

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/etlflows/internal/domain"
)

// cronParser — стандартный cron из 5 полей.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule проверяет cron-выражение.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
	}
	return nil
}

// NextRun возвращает ближайшее время запуска по расписанию после from (UTC).
// ok=false, если у deployment нет расписания.
//
// Значение только для отображения: запуск по расписанию выполняет
// внешний оркестратор.
func NextRun(d *domain.Deployment, from time.Time) (next time.Time, ok bool, err error) {
	if d.Schedule == "" {
		return time.Time{}, false, nil
	}
	sched, err := cronParser.Parse(d.Schedule)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, d.Schedule, err)
	}
	return sched.Next(from.UTC()), true, nil
}
