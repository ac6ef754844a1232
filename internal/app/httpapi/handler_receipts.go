package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/souschef/internal/app/services/budget"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/httputil"
)

func (h *handler) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	list, err := h.app.Budget.List(r.Context(), userID, r.URL.Query().Get("month"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in budget.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	created, err := h.app.Budget.Create(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// handleScanReceipt accepts the photo either as a multipart "image" field or
// as the raw request body with an image content type.
func (h *handler) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	image, contentType, err := readImage(w, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	rec, err := h.app.Budget.Scan(r.Context(), userID, image, contentType)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	limit := int64(budget.MaxImageBytes) + 1
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
		file, header, err := r.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, "", svcerrors.InvalidInput("image is too large")
			}
			return nil, "", svcerrors.InvalidInput("multipart field image is required")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, limit))
		if err != nil {
			return nil, "", svcerrors.InvalidInput("read image")
		}
		ct := header.Header.Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(data)
		}
		return data, ct, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return nil, "", svcerrors.InvalidInput("read image")
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	return data, strings.ToLower(mediaType), nil
}

func (h *handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	rec, err := h.app.Budget.Get(r.Context(), userID, mux.Vars(r)["receiptID"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in budget.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	updated, err := h.app.Budget.Update(r.Context(), userID, mux.Vars(r)["receiptID"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Budget.Delete(r.Context(), userID, mux.Vars(r)["receiptID"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) handleBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	summary, err := h.app.Budget.Summary(r.Context(), userID, r.URL.Query().Get("month"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
