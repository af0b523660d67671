package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type searchRequest struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
	MinRating *int   `json:"min_rating,omitempty"`
	MaxRating *int   `json:"max_rating,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

type statsResponse struct {
	Store   revsearch.Stats              `json:"store"`
	Metrics *revsearch.BasicMetricsStats `json:"metrics,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var review revsearch.Review
	if !s.decode(w, r, &review) {
		return
	}
	inserted, err := s.svc.AddReview(r.Context(), review)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inserted)
}

func (s *Server) handleBulkInsert(w http.ResponseWriter, r *http.Request) {
	var reviews []revsearch.Review
	if !s.decode(w, r, &reviews) {
		return
	}
	inserted, err := s.svc.AddReviews(r.Context(), reviews)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inserted)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	hits, err := s.svc.Search(r.Context(), service.Query{
		Text: req.Query,
		TopK: req.TopK,
		Filter: revsearch.Filter{
			MinRating: req.MinRating,
			MaxRating: req.MaxRating,
			ProductID: req.ProductID,
		},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if hits == nil {
		hits = []revsearch.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: id must be a non-negative integer", revsearch.ErrInvalidArgument))
		return
	}
	review, err := s.svc.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.Inserted{ID: id, Review: review})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := statsResponse{Store: stats}
	if s.metrics != nil {
		m := s.metrics.GetStats()
		resp.Metrics = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v. On failure it writes the response and
// returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:   "Payload Too Large",
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Validation Error",
			Message: "failed to read request body",
		})
		return false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Validation Error",
			Message: "request body must not be empty",
		})
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Validation Error",
			Message: "Failed to deserialize the JSON body into the target type: " + err.Error(),
		})
		return false
	}
	return true
}

// writeError maps service errors to status codes. Internal failures are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, revsearch.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not Found", Message: err.Error()})
	case revsearch.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation Error", Message: err.Error()})
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal Server Error",
			Message: "An unexpected error occurred",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
