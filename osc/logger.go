package osc

// SLogger is the logging interface used by Server and Client. The
// *slog.Logger type satisfies it.
//
// Lifecycle events (listen, accept, close) are logged at Info, per-packet
// events at Debug and dropped packets or connections at Warn.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// DefaultSLogger returns a logger that discards everything.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

func (discardSLogger) Debug(string, ...any) {}
func (discardSLogger) Info(string, ...any)  {}
func (discardSLogger) Warn(string, ...any)  {}
