package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

type logger struct {
	logrus.FieldLogger
}

// New создает логгер с выводом в stdout. format: "text" или "json"
func New(level, format string) Logger {
	return NewWithOutput(os.Stdout, level, format)
}

// NewWithOutput создает логгер с произвольным выводом
func NewWithOutput(out io.Writer, level, format string) Logger {
	log := logrus.New()
	log.SetOutput(out)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return &logger{log}
}

// Discard возвращает логгер, который ничего не пишет
func Discard() Logger {
	return NewWithOutput(io.Discard, "error", "text")
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{l.FieldLogger.WithField(key, value)}
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	return &logger{l.FieldLogger.WithFields(logrus.Fields(fields))}
}

func (l *logger) Info(args ...interface{}) {
	l.FieldLogger.Info(args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.FieldLogger.Infof(format, args...)
}

func (l *logger) Error(args ...interface{}) {
	l.FieldLogger.Error(args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.FieldLogger.Errorf(format, args...)
}

func (l *logger) Warn(args ...interface{}) {
	l.FieldLogger.Warn(args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.FieldLogger.Warnf(format, args...)
}

func (l *logger) Debug(args ...interface{}) {
	l.FieldLogger.Debug(args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.FieldLogger.Debugf(format, args...)
}

func (l *logger) Fatal(args ...interface{}) {
	l.FieldLogger.Fatal(args...)
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.FieldLogger.Fatalf(format, args...)
}
