package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/rebazzar/internal/platform/httpx"
	"github.com/louisbranch/rebazzar/internal/platform/requestctx"
	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
	Avatar   *string `json:"avatar"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, session, err := h.deps.Auth.Signup(r.Context(), authdomain.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusCreated, user, session)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, session, err := h.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusOK, user, session)
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int, user authdomain.User, session authdomain.Session) {
	signed, err := h.deps.Tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, status, sessionJSON{
		Token:     signed,
		ExpiresAt: session.ExpiresAt,
		User:      userView(user),
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	if err := h.deps.Auth.Logout(r.Context(), principal.SessionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.deps.Auth.GetUser(r.Context(), principalUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, userView(user))
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.deps.Auth.UpdateProfile(r.Context(), principalUserID(r), authdomain.ProfileUpdate{
		Name:      req.Name,
		Location:  req.Location,
		AvatarURL: req.Avatar,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, userView(user))
}

func (h *Handler) switchRole(w http.ResponseWriter, r *http.Request) {
	user, err := h.deps.Auth.SwitchRole(r.Context(), principalUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, userView(user))
}

func (h *Handler) getUserProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.deps.Auth.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profileView(user.Profile()))
}
