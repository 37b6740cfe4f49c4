package rawendpoints

import (
	"encoding/json"
	"net/http"
)

const (
	validationProblemType  = "https://tools.ietf.org/html/rfc9110#section-15.5.1"
	validationProblemTitle = "One or more validation errors occurred."
)

// ProblemDetails is an RFC 7807 problem response.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Errors maps a field name to its validation messages, in rule order.
	Errors map[string][]string `json:"errors,omitempty"`
}

// ValidationProblem returns a 400 problem response listing validation
// messages per field.
func ValidationProblem(errors map[string][]string) *ProblemDetails {
	return &ProblemDetails{
		Type:   validationProblemType,
		Title:  validationProblemTitle,
		Status: http.StatusBadRequest,
		Errors: errors,
	}
}

// WriteResult writes the problem as application/problem+json.
func (p *ProblemDetails) WriteResult(w http.ResponseWriter) error {
	status := p.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(p)
}
