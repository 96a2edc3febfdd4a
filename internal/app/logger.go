package app

import (
	"os"

	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
)

// NewLogger builds the process logger from cfg.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, domain.Misconfigured("log level: %v", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, domain.Misconfigured("log format %q", cfg.Format)
	}
	return logger, nil
}
