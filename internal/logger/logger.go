package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log глобальный логгер приложения. До вызова Init пишет в stderr с уровнем info.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Используем JSON формат для production, text для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// SetOutput перенаправляет вывод логов (используется в тестах).
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// WithComponent возвращает запись с полем component.
func WithComponent(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// GoroutineLogger адаптирует logrus к интерфейсу goroutine.Logger.
type GoroutineLogger struct{}

// Errorf пишет ошибку упавшей горутины.
func (GoroutineLogger) Errorf(format string, args ...interface{}) {
	Log.WithField("component", "goroutine").Errorf(format, args...)
}
