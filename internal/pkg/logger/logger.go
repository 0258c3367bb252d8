package logger

import "go.uber.org/zap"

// New returns a zap logger. Debug uses the development config (console,
// debug level); otherwise the production config (JSON, info level).
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
