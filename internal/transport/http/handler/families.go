package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-pregnancy-family/internal/application/family"
	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/transport/http/middleware"
)

type createFamilyRequest struct {
	Name string `json:"name" validate:"required,max=32"`
}

type joinFamilyRequest struct {
	InviteCode string `json:"inviteCode" validate:"required,len=8"`
}

// FamilyHandler exposes family membership endpoints.
type FamilyHandler struct {
	svc family.Service
}

func NewFamilyHandler(svc family.Service) *FamilyHandler { return &FamilyHandler{svc: svc} }

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var req createFamilyRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	v, err := h.svc.CreateFamily(r.Context(), p.UserID, req.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", v)
}

func (h *FamilyHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	v, err := h.svc.GetForUser(r.Context(), p.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", v)
}

// Members lists the family's members; only members may read it.
func (h *FamilyHandler) Members(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	list, err := h.svc.Members(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var req joinFamilyRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	v, err := h.svc.JoinByInviteCode(r.Context(), p.UserID, req.InviteCode)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", v)
}

func (h *FamilyHandler) Leave(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.svc.Leave(r.Context(), p.UserID, chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", nil)
}

func (h *FamilyHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	f, err := h.svc.RegenerateInviteCode(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", f)
}

func (h *FamilyHandler) UpdatePregnancy(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var req domain.UpdatePregnancyRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	f, err := h.svc.UpdatePregnancy(r.Context(), p.UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", f)
}
