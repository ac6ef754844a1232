package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/souschef/internal/app/services/shopping"
	"github.com/R3E-Network/souschef/internal/httputil"
)

type daysRequest struct {
	Dates    []string `json:"dates"`
	Servings int      `json:"servings"`
}

func (h *handler) handleListShopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	items, err := h.app.Shopping.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) handleCreateShopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in shopping.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	item, err := h.app.Shopping.Create(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *handler) handleReconcileShopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var desired []shopping.Input
	if !httputil.DecodeJSON(w, r, &desired) {
		return
	}
	res, err := h.app.Shopping.Reconcile(r.Context(), userID, desired)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handler) handleUpdateShopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in shopping.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	item, err := h.app.Shopping.Update(r.Context(), userID, mux.Vars(r)["itemID"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *handler) handleDeleteShopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Shopping.Delete(r.Context(), userID, mux.Vars(r)["itemID"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) handleToggleShopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	item, err := h.app.Shopping.Toggle(r.Context(), userID, mux.Vars(r)["itemID"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *handler) handleClearShopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	removed, err := h.app.Shopping.ClearChecked(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *handler) handleShoppingFromDays(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req daysRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.app.Shopping.FromDays(r.Context(), userID, req.Dates, req.Servings)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// handleAggregate previews the combined ingredients of the selected days
// without touching the list.
func (h *handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	servings, err := queryInt(r, "servings")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	needs, err := h.app.Shopping.Needs(r.Context(), userID, queryList(r, "date"), servings)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, needs)
}
