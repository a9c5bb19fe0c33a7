// Package logging constructs the broker's structured logger, grounded on
// the teacher's cmd/http/main.go bootstrap (zap.Must, sugared logger).
package logging

import "go.uber.org/zap"

// RunMode selects between zap's production and development presets.
type RunMode string

const (
	ModeProduction  RunMode = "production"
	ModeDevelopment RunMode = "development"
)

// New builds a *zap.SugaredLogger for mode, matching the teacher's own
// zap.Must(zap.NewProduction()).Sugar() idiom with a development
// counterpart for local runs.
func New(mode RunMode) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error

	switch mode {
	case ModeDevelopment:
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
