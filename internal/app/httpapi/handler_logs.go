package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/souschef/internal/app/services/logs"
	"github.com/R3E-Network/souschef/internal/app/services/notes"
	"github.com/R3E-Network/souschef/internal/app/services/products"
	"github.com/R3E-Network/souschef/internal/httputil"
)

// handleListLogs returns the logs dated from..to; either bound may be empty.
func (h *handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := h.app.Logs.Between(r.Context(), userID, q.Get("from"), q.Get("to"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleGetLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	l, err := h.app.Logs.ForDate(r.Context(), userID, mux.Vars(r)["date"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *handler) handleSaveLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var entry logs.Entry
	if !httputil.DecodeJSON(w, r, &entry) {
		return
	}
	saved, err := h.app.Logs.Save(r.Context(), userID, mux.Vars(r)["date"], entry)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, saved)
}

func (h *handler) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Logs.Delete(r.Context(), userID, mux.Vars(r)["date"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) handleRateLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req rating
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	rated, err := h.app.Logs.Rate(r.Context(), userID, mux.Vars(r)["date"], req.Rating)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rated)
}

func (h *handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	list, err := h.app.Products.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in products.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	created, err := h.app.Products.Create(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	p, err := h.app.Products.Get(r.Context(), userID, mux.Vars(r)["productID"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in products.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	updated, err := h.app.Products.Update(r.Context(), userID, mux.Vars(r)["productID"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Products.Delete(r.Context(), userID, mux.Vars(r)["productID"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	list, err := h.app.Notes.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in notes.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	created, err := h.app.Notes.Create(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) handleGetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	n, err := h.app.Notes.Get(r.Context(), userID, mux.Vars(r)["noteID"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *handler) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in notes.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	updated, err := h.app.Notes.Update(r.Context(), userID, mux.Vars(r)["noteID"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Notes.Delete(r.Context(), userID, mux.Vars(r)["noteID"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	noContent(w)
}
