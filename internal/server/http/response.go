package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nubianresearch/research-repository-service/internal/domain"
	"github.com/nubianresearch/research-repository-service/internal/repository"
)

// Response types for JSON serialization.

type paperResponse struct {
	ID              int64             `json:"id"`
	Title           string            `json:"title"`
	Slug            string            `json:"slug"`
	Abstract        string            `json:"abstract"`
	Notes           string            `json:"notes,omitempty"`
	Status          string            `json:"status"`
	CategoryID      int64             `json:"categoryId"`
	UserID          int64             `json:"userId"`
	ReviewedBy      *int64            `json:"reviewedBy"`
	RejectionReason *string           `json:"rejectionReason"`
	CID             string            `json:"cid"`
	FileURL         string            `json:"fileUrl"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	User            userResponse      `json:"user"`
	Category        categoryResponse  `json:"category"`
	Field           fieldResponse     `json:"field"`
	Keywords        []keywordResponse `json:"keywords"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type categoryResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	FieldID int64  `json:"fieldId"`
}

type fieldResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type keywordResponse struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

type listPapersResponse struct {
	Data     []paperResponse `json:"data"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	Size     int             `json:"size"`
	NextPage *string         `json:"next_page"`
	PrevPage *string         `json:"prev_page"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Converter functions

func domainPaperToResponse(p *domain.PaperDetails) paperResponse {
	keywords := make([]keywordResponse, len(p.Keywords))
	for i, k := range p.Keywords {
		keywords[i] = keywordResponse{ID: k.ID, Name: k.Name, Aliases: k.Aliases}
	}
	return paperResponse{
		ID:              p.ID,
		Title:           p.Title,
		Slug:            p.Slug,
		Abstract:        p.Abstract,
		Notes:           p.Notes,
		Status:          string(p.Status),
		CategoryID:      p.CategoryID,
		UserID:          p.UserID,
		ReviewedBy:      p.ReviewedBy,
		RejectionReason: p.RejectionReason,
		CID:             p.CID,
		FileURL:         p.FileURL,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		User:            userResponse(p.User),
		Category:        categoryResponse(p.Category),
		Field:           fieldResponse(p.Field),
		Keywords:        keywords,
	}
}

func domainKeywordToResponse(k *domain.Keyword) keywordResponse {
	return keywordResponse{ID: k.ID, Name: k.Name, Aliases: k.Aliases}
}

func domainFieldToResponse(f *domain.Field) fieldResponse {
	return fieldResponse{ID: f.ID, Name: f.Name}
}

func domainCategoryToResponse(c *domain.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, FieldID: c.FieldID}
}

// paginationLinks computes the next/prev link strings for a listing page.
// A link is nil when there is no page in that direction: next exists iff
// total > offset + size, prev iff page > 1. Links are relative URLs that
// carry all active filters forward.
func paginationLinks(path string, filter repository.PaperFilter, total int64) (next, prev *string) {
	if total > int64(filter.Offset()+filter.Size) {
		link := pageLink(path, filter.Page+1, filter)
		next = &link
	}
	if filter.Page > 1 {
		link := pageLink(path, filter.Page-1, filter)
		prev = &link
	}
	return next, prev
}

// pageLink renders one page link. Parameters keep a fixed order, page and
// size first, so the links are stable across requests.
func pageLink(path string, page int, filter repository.PaperFilter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s?page=%d&size=%d", path, page, filter.Size)
	if filter.CategoryID != nil {
		fmt.Fprintf(&b, "&categoryId=%d", *filter.CategoryID)
	}
	if filter.FieldID != nil {
		fmt.Fprintf(&b, "&fieldId=%d", *filter.FieldID)
	}
	if filter.UserID != nil {
		fmt.Fprintf(&b, "&userId=%d", *filter.UserID)
	}
	if filter.Search != "" {
		fmt.Fprintf(&b, "&search=%s", url.QueryEscape(filter.Search))
	}
	if filter.Status != nil {
		fmt.Fprintf(&b, "&status=%s", *filter.Status)
	}
	return b.String()
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Validation, not-found and conflict messages carry their
// detail; internal error causes are only included in development mode.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrNotFound):
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
		} else {
			writeError(w, http.StatusNotFound, "resource not found")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		if s.development {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
