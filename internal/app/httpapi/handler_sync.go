package httpapi

import (
	"net/http"

	"github.com/R3E-Network/souschef/internal/app/mirror"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/httputil"
)

// handleSync mirrors the caller's data with the remote backend on demand.
func (h *handler) handleSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if h.app.Syncer == nil {
		httputil.WriteError(w, r, svcerrors.Unavailable("sync is not configured", nil))
		return
	}
	mode, err := mirror.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		httputil.WriteError(w, r, svcerrors.InvalidFormat("mode", err.Error()))
		return
	}
	report, err := h.app.Syncer.Sync(r.Context(), userID, mode)
	if err != nil {
		httputil.WriteError(w, r, svcerrors.Unavailable("sync failed", err).WithDetails("report", report))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
