package handler

import (
	"net/http"

	"github.com/go-pregnancy-family/internal/application/user"
	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/transport/http/middleware"
)

// multipartOverhead is the form budget on top of the avatar size limit.
const multipartOverhead = 1 << 20

// UserHandler exposes the signed-in user's profile endpoints.
type UserHandler struct {
	svc            user.Service
	avatarMaxBytes int64
}

func NewUserHandler(svc user.Service, avatarMaxBytes int64) *UserHandler {
	return &UserHandler{svc: svc, avatarMaxBytes: avatarMaxBytes}
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var req domain.UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), p.UserID, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", u)
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.avatarMaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.avatarMaxBytes); err != nil {
		fail(w, r, domain.ErrFileSizeExceeded.Wrap(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, domain.ErrParam.WithMessage("缺少文件"))
		return
	}
	defer file.Close()

	u, err := h.svc.UploadAvatar(r.Context(), p.UserID, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", u)
}
