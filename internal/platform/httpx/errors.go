package httpx

import (
	"log/slog"
	"net/http"
)

// Internal logs the underlying failure and answers with a generic 500 so
// internals never leak onto the wire. Extra attrs are appended to the log
// record as slog pairs.
func Internal(w http.ResponseWriter, logger *slog.Logger, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(msg, append(attrs, slog.Any("error", err))...)
	Error(w, http.StatusInternalServerError, "internal server error")
}
