package dialer

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// windowParser — парсер 5-польных cron-выражений окна обзвона.
var windowParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Window — окно обзвона кампании: звонки инициируются только в
// минуты, попадающие в cron-расписание.
type Window struct {
	sched cron.Schedule
}

// ParseWindow парсит выражение окна. Пустое выражение — nil-окно
// без ограничений (Contains всегда true).
func ParseWindow(expr string) (*Window, error) {
	if expr == "" {
		return nil, nil
	}
	sched, err := windowParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse window expression %q: %w", expr, err)
	}
	return &Window{sched: sched}, nil
}

// Contains возвращает true, если минута t попадает в окно.
//
// Cron-расписание умеет только Next, поэтому проверка — минута t
// является ближайшим срабатыванием после (t − 1s).
func (w *Window) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	minute := t.Truncate(time.Minute)
	return w.sched.Next(minute.Add(-time.Second)).Equal(minute)
}

// ValidateWindowExpr проверяет выражение окна при создании кампании.
func ValidateWindowExpr(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := windowParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid window expression %q: %w", expr, err)
	}
	return nil
}
