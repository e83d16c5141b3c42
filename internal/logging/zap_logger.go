package logging

import "go.uber.org/zap"

// Zap returns LoggerForModuleFunc that produces named loggers backed by
// the provided zap logger.
func Zap(base *zap.Logger) LoggerForModuleFunc {
	return func(module string) Logger {
		return base.Named(module).Sugar()
	}
}

var _ Logger = (*zap.SugaredLogger)(nil)
