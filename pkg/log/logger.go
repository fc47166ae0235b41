package log

// Logger defines a standard interface for logging.
// This allows decoupling from specific logging libraries.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	// WithField returns a Logger that appends key=value to every entry.
	WithField(key string, value interface{}) Logger
}

// nopLogger discards everything. Used by tests and by components that are
// constructed without a logger.
type nopLogger struct{}

// NewNopLogger returns a Logger that drops all output.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Fatalf(string, ...interface{}) {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }
