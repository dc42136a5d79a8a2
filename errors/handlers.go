package errors

import (
	"go.uber.org/zap"
)

// LogError logs an error with its context. Client errors are logged at warn
// level, everything else at error level.
func LogError(logger *zap.Logger, err error, requestID string) {
	qe, ok := err.(*QuizError)
	if !ok {
		logger.Error("unexpected error",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		return
	}

	fields := []zap.Field{
		zap.String("error_type", string(qe.Type)),
		zap.String("message", qe.Message),
		zap.Int("code", qe.Code),
		zap.String("request_id", requestID),
		zap.String("details", qe.Details),
	}
	if cause := qe.Unwrap(); cause != nil {
		fields = append(fields, zap.NamedError("cause", cause))
	}

	if qe.Code >= 400 && qe.Code < 500 {
		logger.Warn("request error", fields...)
		return
	}
	logger.Error("request error", fields...)
}
