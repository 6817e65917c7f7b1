package workflow

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextRun возвращает следующее время запуска после after по выражению из
// пяти полей в часовом поясе tz. Результат в UTC.
func NextRun(expr, tz string, after time.Time) (time.Time, error) {
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("неизвестный часовой пояс %q", tz)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("неверное cron выражение: %w", err)
	}
	next := schedule.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron выражение %q никогда не срабатывает", expr)
	}
	return next.UTC(), nil
}
