package httpx

import (
	"errors"
	"net/http"
	"strconv"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
	"github.com/iotgcet/club-portal/internal/service"
)

// MemberHandlers provides HTTP handlers for profile administration.
type MemberHandlers struct {
	Svc *service.MemberService
}

// List handles GET /api/members?limit=&offset=.
func (h *MemberHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	profiles, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"members": profiles})
}

// Get handles GET /api/members/{id}.
func (h *MemberHandlers) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "get_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /api/members/{id}/role.
func (h *MemberHandlers) SetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	actor := LevelFromContext(r.Context())
	profile, err := h.Svc.SetRole(r.Context(), actor, r.PathValue("id"), domainauth.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientLevel):
			WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "insufficient_level", Err: err})
		case errors.Is(err, ports.ErrProfileNotFound):
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
		default:
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "set_role_failed", Err: err})
		}
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

type awardXPRequest struct {
	Delta int `json:"delta"`
}

// AwardXP handles POST /api/members/{id}/xp.
func (h *MemberHandlers) AwardXP(w http.ResponseWriter, r *http.Request) {
	var req awardXPRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	profile, err := h.Svc.AwardXP(r.Context(), r.PathValue("id"), req.Delta)
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "award_xp_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

// Delete handles DELETE /api/members/{id}.
func (h *MemberHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Svc.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "delete_failed", Err: err})
		return
	}
	if !deleted {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "profile_not_found",
			Err:     errors.New("profile not found"),
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me: the signed-in member's own view of the session
// context (identity, profile, level).
func (h *MemberHandlers) Me(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    auth.Authz.Identity.ID,
			"email": auth.Authz.Identity.Email,
		},
		"profile": auth.Authz.Profile,
		"level":   auth.Authz.Level.String(),
	})
}
