package httpserver

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nubianresearch/research-repository-service/internal/domain"
	"github.com/nubianresearch/research-repository-service/internal/events"
	"github.com/nubianresearch/research-repository-service/internal/observability"
	"github.com/nubianresearch/research-repository-service/internal/repository"
)

// listPapersHandler handles GET /papers with filtering and pagination.
// Visibility is scoped to the requesting principal inside the repository.
func (s *Server) listPapersHandler(w http.ResponseWriter, r *http.Request) {
	principal := observability.PrincipalFrom(r.Context())
	start := time.Now()

	filter, err := parsePaperFilter(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	papers, total, err := s.papers.List(r.Context(), principal, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list papers")
		s.writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.PaperListRequests.WithLabelValues(string(principal.Role)).Inc()
		s.metrics.PaperListDuration.Observe(time.Since(start).Seconds())
	}

	data := make([]paperResponse, len(papers))
	for i, p := range papers {
		data[i] = domainPaperToResponse(p)
	}

	// A status filter only took effect for admins and owners listing their
	// own papers; the links should not echo a parameter that was ignored.
	linkFilter := filter
	if filter.Status != nil && !principal.IsAdmin() &&
		!(filter.UserID != nil && principal.Owns(*filter.UserID)) {
		linkFilter.Status = nil
	}

	next, prev := paginationLinks("/papers", linkFilter, total)
	writeJSON(w, http.StatusOK, listPapersResponse{
		Data:     data,
		Total:    total,
		Page:     filter.Page,
		Size:     filter.Size,
		NextPage: next,
		PrevPage: prev,
	})
}

// parsePaperFilter builds a PaperFilter from listing query parameters.
func parsePaperFilter(r *http.Request) (repository.PaperFilter, error) {
	var filter repository.PaperFilter
	q := r.URL.Query()

	for _, p := range []struct {
		name string
		dest **int64
	}{
		{"categoryId", &filter.CategoryID},
		{"fieldId", &filter.FieldID},
		{"userId", &filter.UserID},
	} {
		if raw := q.Get(p.name); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return filter, domain.NewValidationError(p.name, "must be a positive integer")
			}
			*p.dest = &id
		}
	}

	filter.Search = strings.TrimSpace(q.Get("search"))

	if raw := q.Get("status"); raw != "" {
		status := domain.PaperStatus(raw)
		filter.Status = &status
	}

	for _, p := range []struct {
		name string
		dest *int
	}{
		{"page", &filter.Page},
		{"size", &filter.Size},
	} {
		if raw := q.Get(p.name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return filter, domain.NewValidationError(p.name, "must be an integer")
			}
			*p.dest = n
		}
	}

	if err := filter.Validate(); err != nil {
		return filter, err
	}
	return filter, nil
}

// getPaperHandler handles GET /papers/{ref} where ref is an id or slug.
func (s *Server) getPaperHandler(w http.ResponseWriter, r *http.Request) {
	principal := observability.PrincipalFrom(r.Context())
	ref := chi.URLParam(r, "ref")

	paper, err := s.papers.GetByIDOrSlug(r.Context(), principal, ref)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPaperToResponse(paper))
}

// createPaperRequest is the validated subset of the submission form.
type createPaperRequest struct {
	Title      string `validate:"required,min=3,max=300"`
	Abstract   string `validate:"required,min=10"`
	CategoryID int64  `validate:"required,gt=0"`
}

// createPaperHandler handles POST /papers. Submissions are multipart: the
// metadata fields plus the PDF under "file". Only regular users submit;
// admins review papers, they do not author them.
func (s *Server) createPaperHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := observability.PrincipalFrom(ctx)
	if !principal.IsUser() {
		writeError(w, http.StatusForbidden, "only users can submit papers")
		return
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	categoryID, err := parseFormInt64(r, "categoryId")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	req := createPaperRequest{
		Title:      strings.TrimSpace(r.FormValue("title")),
		Abstract:   strings.TrimSpace(r.FormValue("abstract")),
		CategoryID: categoryID,
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeDomainError(w, validationErrorFrom(err))
		return
	}

	existingKeywordIDs, err := parseFormIDList(r, "existingKeywords")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	newKeywordNames := parseFormNameList(r, "newKeywords")

	// Resolve cheap failures before touching the file store: a bad
	// category or keyword id should not leave an orphaned upload behind.
	if _, err := s.taxonomy.GetCategory(ctx, req.CategoryID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.NewValidationError("categoryId",
				fmt.Sprintf("category %d does not exist", req.CategoryID))
		}
		s.writeDomainError(w, err)
		return
	}
	keywordIDs, err := s.keywords.Reconcile(ctx, existingKeywordIDs, newKeywordNames)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if err := validatePDFUpload(header); err != nil {
		s.writeDomainError(w, err)
		return
	}

	stored, err := s.files.Upload(ctx, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.logger.Error().Err(err).Msg("paper file upload failed")
		s.writeDomainError(w, err)
		return
	}

	paper := &domain.Paper{
		Title:      req.Title,
		Abstract:   req.Abstract,
		Notes:      strings.TrimSpace(r.FormValue("notes")),
		Status:     domain.PaperStatusPending,
		CategoryID: req.CategoryID,
		UserID:     principal.ID,
		CID:        stored.CID,
		FileURL:    s.files.FileURL(stored.CID),
	}

	err = s.runTx(ctx, func(papers repository.PaperRepository, keywords repository.KeywordRepository) error {
		created, err := papers.Create(ctx, paper)
		if err != nil {
			return err
		}
		paper = created
		for _, keywordID := range keywordIDs {
			if _, err := keywords.EnsureAttached(ctx, created.ID, keywordID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The pin is unreachable from any paper row now; clean it up.
		if delErr := s.files.Delete(ctx, []string{stored.ID}); delErr != nil {
			s.logger.Error().Err(delErr).Str("file_id", stored.ID).
				Msg("failed to remove orphaned upload")
		}
		s.writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.PapersCreated.Inc()
	}
	s.events.PaperLifecycle(ctx, events.TypePaperSubmitted, paper)
	paperLogger := observability.WithPaperContext(s.logger, paper.ID, paper.Slug)
	paperLogger.Info().Msg("paper submitted")

	details, err := s.papers.Get(ctx, strconv.FormatInt(paper.ID, 10))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domainPaperToResponse(details))
}

// updatePaperHandler handles PUT /papers/{ref}. Owners edit their own
// metadata; status transitions and file replacement are admin operations.
// A missing paper is 404 before any permission check, so probing for
// hidden papers learns nothing.
func (s *Server) updatePaperHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := observability.PrincipalFrom(ctx)

	current, err := s.papers.Get(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !principal.IsAdmin() && !principal.Owns(current.UserID) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	paper := current.Paper

	if v, ok := formValue(r, "title"); ok {
		if len(strings.TrimSpace(v)) < 3 {
			s.writeDomainError(w, domain.NewValidationError("title", "must be at least 3 characters"))
			return
		}
		paper.Title = strings.TrimSpace(v)
	}
	if v, ok := formValue(r, "abstract"); ok {
		if len(strings.TrimSpace(v)) < 10 {
			s.writeDomainError(w, domain.NewValidationError("abstract", "must be at least 10 characters"))
			return
		}
		paper.Abstract = strings.TrimSpace(v)
	}
	if v, ok := formValue(r, "notes"); ok {
		paper.Notes = strings.TrimSpace(v)
	}
	if v, ok := formValue(r, "categoryId"); ok {
		categoryID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || categoryID <= 0 {
			s.writeDomainError(w, domain.NewValidationError("categoryId", "must be a positive integer"))
			return
		}
		if _, err := s.taxonomy.GetCategory(ctx, categoryID); err != nil {
			s.writeDomainError(w, err)
			return
		}
		paper.CategoryID = categoryID
	}

	statusChanged := false
	if v, ok := formValue(r, "status"); ok && domain.PaperStatus(v) != current.Status {
		status := domain.PaperStatus(v)
		if !status.Valid() {
			s.writeDomainError(w, domain.NewValidationError("status", "status must be one of pending, published, rejected"))
			return
		}
		if !principal.IsAdmin() {
			writeError(w, http.StatusForbidden, "only admins can change paper status")
			return
		}
		if status == domain.PaperStatusRejected && strings.TrimSpace(r.FormValue("rejectionReason")) == "" {
			s.writeDomainError(w, domain.NewValidationError("rejectionReason", "required when rejecting a paper"))
			return
		}
		paper.Status = status
		statusChanged = true
	}

	// Reviewer attribution follows the status: set on a review decision,
	// cleared when a paper returns to pending.
	if paper.Status.Reviewed() {
		if statusChanged {
			reviewerID := principal.ID
			paper.ReviewedBy = &reviewerID
		}
		if paper.Status == domain.PaperStatusRejected {
			reason := strings.TrimSpace(r.FormValue("rejectionReason"))
			if reason != "" {
				paper.RejectionReason = &reason
			}
		} else {
			paper.RejectionReason = nil
		}
	} else {
		paper.ReviewedBy = nil
		paper.RejectionReason = nil
	}

	removedKeywordIDs, err := parseFormIDList(r, "removedKeywords")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	addedKeywordIDs, err := parseFormIDList(r, "existingKeywords")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	// Unlike creation, added ids that no longer resolve are dropped rather
	// than rejected: the keyword may have been merged away since the client
	// fetched it.
	attachIDs, err := s.keywords.FilterExisting(ctx, addedKeywordIDs)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	newIDs, err := s.keywords.Reconcile(ctx, nil, parseFormNameList(r, "newKeywords"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	attachIDs = append(attachIDs, newIDs...)

	var replacedFileCID string
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		if !principal.IsAdmin() {
			writeError(w, http.StatusForbidden, "only admins can replace the paper file")
			return
		}
		if err := validatePDFUpload(header); err != nil {
			s.writeDomainError(w, err)
			return
		}
		stored, err := s.files.Upload(ctx, header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			s.logger.Error().Err(err).Msg("replacement file upload failed")
			s.writeDomainError(w, err)
			return
		}
		replacedFileCID = paper.CID
		paper.CID = stored.CID
		paper.FileURL = s.files.FileURL(stored.CID)
	}

	paper.UpdatedAt = time.Now().UTC()

	err = s.runTx(ctx, func(papers repository.PaperRepository, keywords repository.KeywordRepository) error {
		if err := papers.Update(ctx, &paper); err != nil {
			return err
		}
		if err := keywords.Detach(ctx, paper.ID, removedKeywordIDs); err != nil {
			return err
		}
		for _, keywordID := range attachIDs {
			if _, err := keywords.EnsureAttached(ctx, paper.ID, keywordID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if replacedFileCID != "" {
		s.removeStoredFile(ctx, replacedFileCID)
	}

	if statusChanged {
		if s.metrics != nil {
			s.metrics.PaperStatusTransitions.WithLabelValues(string(paper.Status)).Inc()
		}
		switch paper.Status {
		case domain.PaperStatusPublished:
			s.events.PaperLifecycle(ctx, events.TypePaperPublished, &paper)
		case domain.PaperStatusRejected:
			s.events.PaperLifecycle(ctx, events.TypePaperRejected, &paper)
		}
	}
	paperLogger := observability.WithPaperContext(s.logger, paper.ID, paper.Slug)
	paperLogger.Info().Msg("paper updated")

	details, err := s.papers.Get(ctx, strconv.FormatInt(paper.ID, 10))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainPaperToResponse(details))
}

// deletePaperHandler handles DELETE /papers/{ref}. The database row is
// removed transactionally; the pinned file is cleaned up best-effort
// afterwards, since a gateway outage should not block the delete.
func (s *Server) deletePaperHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := observability.PrincipalFrom(ctx)

	current, err := s.papers.Get(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !principal.IsAdmin() && !principal.Owns(current.UserID) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	err = s.runTx(ctx, func(papers repository.PaperRepository, _ repository.KeywordRepository) error {
		return papers.Delete(ctx, current.ID)
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.removeStoredFile(ctx, current.CID)

	if s.metrics != nil {
		s.metrics.PapersDeleted.Inc()
	}
	s.events.PaperLifecycle(ctx, events.TypePaperDeleted, &current.Paper)
	paperLogger := observability.WithPaperContext(s.logger, current.ID, current.Slug)
	paperLogger.Info().Msg("paper deleted")

	writeJSON(w, http.StatusOK, messageResponse{Message: "paper deleted"})
}

// removeStoredFile unpins a paper's file by CID, logging failures instead of
// propagating them.
func (s *Server) removeStoredFile(ctx context.Context, cid string) {
	if cid == "" {
		return
	}
	stored, err := s.files.GetByCID(ctx, cid)
	if err != nil {
		s.logger.Warn().Err(err).Str("cid", cid).Msg("could not resolve stored file for removal")
		return
	}
	if err := s.files.Delete(ctx, []string{stored.ID}); err != nil {
		s.logger.Warn().Err(err).Str("cid", cid).Msg("could not remove stored file")
	}
}

// validatePDFUpload rejects uploads that are not named or typed as PDF.
func validatePDFUpload(header *multipart.FileHeader) error {
	if header.Filename == "" {
		return domain.NewValidationError("file", "filename is required")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/pdf" && contentType != "application/octet-stream" {
		return domain.NewValidationError("file", "must be a PDF document")
	}
	if !strings.EqualFold(strings.TrimSpace(filepathExt(header.Filename)), ".pdf") {
		return domain.NewValidationError("file", "must have a .pdf extension")
	}
	return nil
}

// filepathExt returns the final extension of name including the dot.
func filepathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// formValue reports whether the form field was provided at all, so absent
// fields are left untouched on partial updates.
func formValue(r *http.Request, name string) (string, bool) {
	values, ok := r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// parseFormInt64 parses a required positive integer form field.
func parseFormInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return 0, domain.NewValidationError(name, "is required")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return n, nil
}

// parseFormIDList parses a comma-separated id list form field. Absent or
// empty fields yield an empty list.
func parseFormIDList(r *http.Request, name string) ([]int64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, domain.NewValidationError(name, fmt.Sprintf("invalid id %q", part))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseFormNameList parses a comma-separated name list form field.
func parseFormNameList(r *http.Request, name string) []string {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

// validationErrorFrom converts a validator error into a domain validation
// error naming the first failing field.
func validationErrorFrom(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError(strings.ToLower(fe.Field()[:1])+fe.Field()[1:],
			fmt.Sprintf("failed validation on %q", fe.Tag()))
	}
	return domain.NewValidationError("request", "invalid request")
}
