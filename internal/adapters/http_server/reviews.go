package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"resort_hub/internal/app"
	"resort_hub/internal/domain"
)

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	// Newest first; aligns with the (resort_id, created_at) index
	page := domain.PageQuery{Limit: limit, Sort: "-created_at"}
	if c := r.URL.Query().Get("cursor"); c != "" {
		page.Cursor = &c
	}
	out, err := h.Q.ListReviews(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) addReview(w http.ResponseWriter, r *http.Request) {
	var in app.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rv, err := h.Reviews.AddReview(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}
