package rawendpoints

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Result is a handler or filter return value that writes its own response.
type Result interface {
	WriteResult(w http.ResponseWriter) error
}

// Empty represents a void response.
// The zero value is nil, which serializes to JSON null.
//
// Wire format: {"result": null}
type Empty *struct{}

// response is the envelope for successful JSON responses.
type response struct {
	Result any `json:"result"`
}

// errorResponse is the envelope for error responses.
type errorResponse struct {
	Error *Error `json:"error"`
}

// handled is returned by plain HTTP handlers, which write their own response.
type handled struct{}

func (handled) WriteResult(http.ResponseWriter) error { return nil }

func encodeResponse(w jsonWriter, result any) error {
	return json.NewEncoder(w).Encode(response{Result: result})
}

func encodeErrorResponse(w jsonWriter, err *Error) error {
	return json.NewEncoder(w).Encode(errorResponse{Error: err})
}

// jsonWriter is satisfied by http.ResponseWriter and allows testing.
type jsonWriter interface {
	Write([]byte) (int, error)
}

// writeResult writes a handler result: Result values write themselves,
// anything else is wrapped in the {"result": ...} envelope.
func writeResult(w http.ResponseWriter, res any, logger *slog.Logger) {
	if r, ok := res.(Result); ok {
		if err := r.WriteResult(w); err != nil {
			logger.Error("failed to write result", slog.Any("error", err))
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := encodeResponse(w, res); err != nil {
		// Response may be partially written, nothing we can do.
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}
