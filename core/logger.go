package core

// Logger is any leveled logger that can report errors to an external sink.
// Implementations may inspect args for well-known types (errors, principals)
// to enrich the report.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
