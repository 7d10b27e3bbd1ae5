package handler

import (
	"net/http"

	"github.com/go-pregnancy-family/internal/domain"
)

// Health answers liveness checks.
func Health(w http.ResponseWriter, _ *http.Request) {
	ok(w, "", nil)
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	fail(w, r, domain.CodeNotFound.Err())
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	fail(w, r, domain.CodeMethodNotAllowed.Err())
}
