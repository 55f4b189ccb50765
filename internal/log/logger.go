// Package log wraps log/slog with component scoping and the structured
// field vocabulary shared by the HTTP server and workers.
package log

import (
	"log/slog"
	"os"
)

// Logger is a component-scoped slog.Logger. The component shows up as
// an attribute on every record. The root handler is retained so a
// logger can be rescoped to another component without stacking
// component attributes.
type Logger struct {
	*slog.Logger
	handler   slog.Handler
	component string
}

type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
	}
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, config.Component),
		handler:   handler,
		component: config.Component,
	}
}

// With returns a logger carrying extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		handler:   l.handler,
		component: l.component,
	}
}

// WithComponent returns a logger scoped to another component. Scoping
// starts fresh from the root handler, so attributes added with With do
// not carry over.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    slog.New(l.handler).With(FieldComponent, component),
		handler:   l.handler,
		component: component,
	}
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}
