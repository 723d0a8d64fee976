package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"resort_hub/internal/app"
	"resort_hub/internal/domain"
)

type Handlers struct {
	Q        *app.QueryService
	Resorts  *app.ResortService
	Reviews  *app.ReviewService
	Auth     *app.AuthService
	Stats    *app.StatsService
	LoginRPS float64
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	requireAdmin := RequireAdmin(h.Auth)
	login := NewIPLimiter(h.LoginRPS, 5)

	s.mux.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.stats)

		// public site
		r.Get("/resorts", h.listResorts(true))
		r.Get("/resorts/{id}", h.getResort)
		r.Get("/reviews/{id}", h.listReviews)
		r.Post("/reviews/{id}", h.addReview)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/register", h.register)
			r.With(login.Middleware).Post("/login", h.login)
			r.With(requireAdmin).Get("/me", h.me)

			r.Route("/resorts", func(r chi.Router) {
				r.Get("/", h.listResorts(false))
				r.Get("/{id}", h.getResort)
				r.Group(func(r chi.Router) {
					r.Use(requireAdmin)
					r.Post("/", h.createResort)
					r.Post("/new", h.createResort)
					r.Put("/{id}", h.updateResort)
					r.Put("/edit/{id}", h.updateResort)
					r.Delete("/{id}", h.deleteResort)
				})
			})
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses. Anything unclassified
// is logged and reported as a 500 without internals.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *domain.FieldError
	switch {
	case errors.As(err, &fe):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Invalid argument", Status: http.StatusBadRequest, Detail: fe.Error(), Field: fe.Field})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeProblem(w, http.StatusBadRequest, "Invalid argument", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		log.Error().Err(err).Str("route", routePattern(r)).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

const maxBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers reads with a weak ETag and honors If-None-Match.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// parseLimit reads ?limit=, defaulting to 50 and capped at 200.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblemBody(w, problem{Type: "about:blank", Title: "Invalid limit", Status: http.StatusBadRequest,
				Detail: "limit must be an integer between 1 and 200", Field: "limit"})
			return 0, false
		}
		limit = l
	}
	return limit, true
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.Stats.RecordPageView(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"pageViews": n})
}

/********** resorts **********/

// listResorts serves both lists; the public one shows active resorts unless
// a status is asked for.
func (h *Handlers) listResorts(public bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}
		q := domain.ResortsQuery{Limit: limit}
		if st := strings.ToLower(r.URL.Query().Get("status")); st != "" {
			s := domain.ResortStatus(st)
			if !s.Valid() {
				writeError(w, r, domain.Invalid("status", "must be one of active, inactive, pending"))
				return
			}
			q.Status = &s
		} else if public {
			s := domain.StatusActive
			q.Status = &s
		}
		if text := strings.TrimSpace(r.URL.Query().Get("q")); text != "" {
			q.Q = &text
		}

		out, err := h.Q.ListResorts(r.Context(), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeCacheable(w, r, out)
	}
}

func (h *Handlers) getResort(w http.ResponseWriter, r *http.Request) {
	d, err := h.Q.GetResort(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, d)
}

type deletionFailure struct {
	PublicID string           `json:"publicId"`
	Kind     domain.MediaKind `json:"kind"`
	Error    string           `json:"error"`
}

func failures(errs []*domain.RemoteDeletionError) []deletionFailure {
	out := make([]deletionFailure, 0, len(errs))
	for _, e := range errs {
		out = append(out, deletionFailure{PublicID: e.PublicID, Kind: e.Kind, Error: e.Err.Error()})
	}
	return out
}

func (h *Handlers) createResort(w http.ResponseWriter, r *http.Request) {
	var in app.ResortInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, files, err := h.Resorts.CreateResort(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := domain.ResortDetail{Resort: res, Files: []domain.FileRecord{}}
	if !files.Empty() {
		out.Files = append(out.Files, files)
	}
	writeJSON(w, http.StatusCreated, out)
}

type updateResponse struct {
	Resort           domain.Resort     `json:"resort"`
	Files            domain.FileRecord `json:"files"`
	FilesDeleted     bool              `json:"filesDeleted,omitempty"`
	DeletionFailures []deletionFailure `json:"deletionFailures"`
}

func (h *Handlers) updateResort(w http.ResponseWriter, r *http.Request) {
	var p app.ResortPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	res, err := h.Resorts.UpdateResortMedia(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{
		Resort:           res.Resort,
		Files:            res.Files,
		FilesDeleted:     res.FilesDeleted,
		DeletionFailures: failures(res.DeletionFailures),
	})
}

func (h *Handlers) deleteResort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.Resorts.DeleteResort(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               id,
		"deleted":          true,
		"deletionAttempts": res.DeletionAttempts,
		"deletionFailures": failures(res.DeletionFailures),
	})
}
