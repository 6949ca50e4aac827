package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/middleware"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

const maxBodyBytes = 10 << 20

// responder renders results and errors for every handler.
type responder struct {
	logger       *logger.Logger
	exposeErrors bool
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeMessage writes a {"message": ...} acknowledgement.
func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// writeError writes a JSON error response. Internal failures are logged with
// the request's correlation id.
func (rs *responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperr.As(err); !ok || e.Kind == apperr.KindInternal {
		rs.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
	}
	apperr.Write(w, err, rs.exposeErrors)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Validation(apperr.CodeValidationFailed, "invalid request body")
}
