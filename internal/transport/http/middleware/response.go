package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/go-pregnancy-family/internal/domain"
)

// writeCode writes the {code, message, data} envelope for a coded rejection.
func writeCode(w http.ResponseWriter, e *domain.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code.HTTP)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    e.Code.Value,
		"message": e.Message(),
		"data":    nil,
	})
}
