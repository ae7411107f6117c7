package utils

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger costruisce il logger dell'applicazione. Con LOOPIN_DEBUG
// attivo usa la configurazione di sviluppo (log leggibili a console).
func NewLogger() (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error
	if os.Getenv("LOOPIN_DEBUG") != "" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
