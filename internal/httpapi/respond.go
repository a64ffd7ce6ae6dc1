package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"cafe-pos/internal/backup"
	apperrors "cafe-pos/internal/errors"
	"cafe-pos/internal/logging"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError maps err to a status code. Client errors carry their message;
// everything else is logged and answered with fallback. A backup failure
// that is not the client's fault stays generic even when it wraps a store
// validation error, so column details never reach the response.
func writeError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error, fallback string) {
	var tooLarge *http.MaxBytesError
	var backupErr *backup.BackupError
	var appErr *apperrors.AppError

	switch {
	case errors.As(err, &tooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, "Backup file is too large")
	case errors.As(err, &backupErr) && backupErr.Type == backup.BackupErrorTypeNotFound:
		writeMessage(w, http.StatusNotFound, backupErr.UserMessage())
	case errors.As(err, &backupErr) && backupErr.IsClientError():
		writeMessage(w, http.StatusBadRequest, backupErr.UserMessage())
	case errors.As(err, &backupErr):
		logger.WithContext(r.Context()).WithField("error", err.Error()).Error(fallback)
		writeMessage(w, http.StatusInternalServerError, backupErr.UserMessage())
	case errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeValidation:
		writeMessage(w, http.StatusBadRequest, appErr.Message)
	default:
		logger.WithContext(r.Context()).WithField("error", err.Error()).Error(fallback)
		writeMessage(w, http.StatusInternalServerError, fallback)
	}
}
