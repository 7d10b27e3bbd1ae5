package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-pregnancy-family/internal/application/auth"
	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/transport/http/middleware"
)

// AuthHandler exposes the /auth endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req domain.SendCodeRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("send code", "purpose", req.Type)
	if err := h.svc.SendCode(r.Context(), req.Phone, req.Type); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "验证码发送成功", nil)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	resp, err := h.svc.Register(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "注册成功", resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	resp, err := h.svc.Login(r.Context(), req.Phone, req.VerifyCode)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "登录成功", resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.svc.Logout(r.Context(), p.UserID); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "退出成功", nil)
}

func (h *AuthHandler) Info(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	resp, err := h.svc.GetUserInfo(r.Context(), p.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", resp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	resp, err := h.svc.RefreshToken(r.Context(), p)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "Token刷新成功", resp)
}
