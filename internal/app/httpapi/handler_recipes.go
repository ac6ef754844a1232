package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/souschef/internal/app/services/ingredients"
	"github.com/R3E-Network/souschef/internal/app/services/recipes"
	"github.com/R3E-Network/souschef/internal/httputil"
)

type rating struct {
	Rating int `json:"rating"`
}

func (h *handler) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := h.app.Recipes.List(r.Context(), userID, recipes.Filter{Tag: q.Get("tag"), Query: q.Get("q")})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in recipes.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	created, err := h.app.Recipes.Create(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	rec, err := h.app.Recipes.Get(r.Context(), userID, mux.Vars(r)["recipeID"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in recipes.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	updated, err := h.app.Recipes.Update(r.Context(), userID, mux.Vars(r)["recipeID"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Recipes.Delete(r.Context(), userID, mux.Vars(r)["recipeID"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) handleRateRecipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req rating
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	rated, err := h.app.Recipes.Rate(r.Context(), userID, mux.Vars(r)["recipeID"], req.Rating)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rated)
}

func (h *handler) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	list, err := h.app.Ingredients.List(r.Context(), userID, mux.Vars(r)["recipeID"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleAddIngredient(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in ingredients.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	added, err := h.app.Ingredients.Add(r.Context(), userID, mux.Vars(r)["recipeID"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, added)
}

func (h *handler) handleUpdateIngredient(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in ingredients.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	vars := mux.Vars(r)
	updated, err := h.app.Ingredients.Update(r.Context(), userID, vars["recipeID"], vars["ingredientID"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) handleRemoveIngredient(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.app.Ingredients.Remove(r.Context(), userID, vars["recipeID"], vars["ingredientID"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) handleScaledIngredients(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	servings, err := queryInt(r, "servings")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	list, err := h.app.Ingredients.Scaled(r.Context(), userID, mux.Vars(r)["recipeID"], servings)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}
