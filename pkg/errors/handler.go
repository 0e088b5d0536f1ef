package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"pulseboard/pkg/logging"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Type    string                 `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Handler writes AppErrors as HTTP responses.
type Handler struct {
	logger *logging.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *logging.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle converts err to an AppError, logs it and writes the response.
func (h *Handler) Handle(w http.ResponseWriter, err error, traceID string) {
	appErr := AsAppError(err)

	if h.logger != nil {
		h.logger.Error("request failed",
			zap.String("trace_id", traceID),
			zap.String("type", string(appErr.Type)),
			zap.String("code", appErr.Code),
			zap.String("message", appErr.Message),
			zap.Error(appErr.Err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		TraceID: traceID,
		Error: ErrorDetail{
			Type:    string(appErr.Type),
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// HandlePanic writes a generic internal error for a recovered panic.
func (h *Handler) HandlePanic(w http.ResponseWriter, recovered interface{}, traceID string) {
	if h.logger != nil {
		h.logger.Error("panic recovered",
			zap.String("trace_id", traceID),
			zap.Any("value", recovered),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		TraceID: traceID,
		Error: ErrorDetail{
			Type:    string(InternalError),
			Code:    "PANIC",
			Message: "An unexpected error occurred",
		},
	})
}
