// Package logging provides loggers for timeship modules.
package logging

import "context"

// Logger is an interface used by timeship modules to output log messages.
type Logger interface {
	Debugf(msg string, args ...interface{})
	Debugw(msg string, keyValuePairs ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

// LoggerForModuleFunc returns a Logger for a given module.
type LoggerForModuleFunc func(module string) Logger

// GetContextLoggerFunc returns a Logger for a given context.
type GetContextLoggerFunc func(ctx context.Context) Logger

// Module returns a function that provides loggers for the given module
// based on the context.
func Module(module string) GetContextLoggerFunc {
	return func(ctx context.Context) Logger {
		if l, ok := ctx.Value(loggerKey).(LoggerForModuleFunc); ok && l != nil {
			return l(module)
		}

		return nullLogger{}
	}
}
