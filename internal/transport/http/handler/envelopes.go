package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/pkg/validate"
)

// Envelope is the response wrapper for every endpoint. Code 200 means success.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ok writes a success envelope. An empty msg uses the default success message.
func ok(w http.ResponseWriter, msg string, data any) {
	if msg == "" {
		msg = domain.CodeSuccess.Message
	}
	writeJSON(w, http.StatusOK, Envelope{Code: domain.CodeSuccess.Value, Message: msg, Data: data})
}

// fail renders err. Coded errors keep their code and message; field validation failures become
// PARAM_ERROR with the field list; anything else is logged and reported as SYSTEM_ERROR.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var fields validate.Errors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, Envelope{
			Code:    domain.CodeParamError.Value,
			Message: domain.CodeParamError.Message,
			Data:    fields,
		})
		return
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.ErrSystem
	}
	if de.Code.HTTP >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"code", de.Code.Value,
			"error", err,
		)
	}
	writeJSON(w, de.Code.HTTP, Envelope{Code: de.Code.Value, Message: de.Message(), Data: nil})
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrParam.WithMessage("请求体格式错误")
	}
	return validate.Struct(dst)
}
