package common

import (
	"os"

	"github.com/sirupsen/logrus"
)

// ConfigureLogger prepares the logrus standard logger, all packages log through it.
func ConfigureLogger(level, format string, fields logrus.Fields) {
	logger := logrus.StandardLogger()
	logger.Out = os.Stdout
	if format == "json" {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	logger.AddHook(&DefaultFieldsHook{Fields: fields})
}

type DefaultFieldsHook struct {
	Fields logrus.Fields
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	for k, v := range hook.Fields {
		if _, found := e.Data[k]; !found {
			e.Data[k] = v
		}
	}
	return nil
}
