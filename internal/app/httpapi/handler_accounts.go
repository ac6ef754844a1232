package httpapi

import (
	"net/http"

	"github.com/R3E-Network/souschef/internal/app/services/accounts"
	"github.com/R3E-Network/souschef/internal/httputil"
)

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

func (h *handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if _, err := h.app.Accounts.SignUp(r.Context(), req.Email, req.Password, req.DisplayName); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	session, err := h.app.Accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.log.LogSecurityEvent(r.Context(), "account_created", map[string]interface{}{"user_id": session.Account.ID})
	httputil.WriteJSON(w, http.StatusCreated, session)
}

func (h *handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	session, err := h.app.Accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.LogSecurityEvent(r.Context(), "signin_failed", map[string]interface{}{"remote_addr": r.RemoteAddr})
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	acct, err := h.app.Accounts.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

func (h *handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var profile accounts.Profile
	if !httputil.DecodeJSON(w, r, &profile) {
		return
	}
	acct, err := h.app.Accounts.UpdateProfile(r.Context(), userID, profile)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

func (h *handler) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Accounts.Delete(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.log.LogSecurityEvent(r.Context(), "account_deleted", map[string]interface{}{"user_id": userID})
	noContent(w)
}

func (h *handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.audit.ForUser(userID, limit))
}
