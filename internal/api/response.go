package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/shopspring/decimal"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// RespondJSON sends a JSON response with the given status code
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[WARN] encode response: %v", err)
		}
	}
}

// RespondError sends an error response with the given status code
func RespondError(w http.ResponseWriter, status int, message string, details interface{}) {
	RespondJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// number renders a decimal as a JSON number rather than a quoted string.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func numbers(m map[string]decimal.Decimal) map[string]json.Number {
	out := make(map[string]json.Number, len(m))
	for k, v := range m {
		out[k] = number(v)
	}
	return out
}
