package httpserver

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nubianresearch/research-repository-service/internal/domain"
	"github.com/nubianresearch/research-repository-service/internal/observability"
)

// searchKeywordsHandler handles GET /keywords?q= fuzzy keyword search.
func (s *Server) searchKeywordsHandler(w http.ResponseWriter, r *http.Request) {
	keywords, err := s.keywords.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.KeywordSearches.Inc()
	}

	data := make([]keywordResponse, len(keywords))
	for i, k := range keywords {
		data[i] = domainKeywordToResponse(k)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

// listFieldsHandler handles GET /fields.
func (s *Server) listFieldsHandler(w http.ResponseWriter, r *http.Request) {
	fields, err := s.taxonomy.ListFields(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list fields")
		s.writeDomainError(w, err)
		return
	}

	data := make([]fieldResponse, len(fields))
	for i, f := range fields {
		data[i] = domainFieldToResponse(f)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

// listCategoriesHandler handles GET /fields/{fieldID}/categories.
func (s *Server) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	fieldID, err := strconv.ParseInt(chi.URLParam(r, "fieldID"), 10, 64)
	if err != nil || fieldID <= 0 {
		s.writeDomainError(w, domain.NewValidationError("fieldId", "must be a positive integer"))
		return
	}

	categories, err := s.taxonomy.ListCategories(r.Context(), fieldID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	data := make([]categoryResponse, len(categories))
	for i, c := range categories {
		data[i] = domainCategoryToResponse(c)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

// createFieldRequest is the payload for creating a field.
type createFieldRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// createFieldHandler handles POST /fields. Admin-only; creating an existing
// name returns the existing field, keeping the operation idempotent.
func (s *Server) createFieldHandler(w http.ResponseWriter, r *http.Request) {
	principal := observability.PrincipalFrom(r.Context())
	if !principal.IsAdmin() {
		writeError(w, http.StatusForbidden, "only admins can manage the taxonomy")
		return
	}

	var req createFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		s.writeDomainError(w, validationErrorFrom(err))
		return
	}

	field, err := s.taxonomy.EnsureField(r.Context(), req.Name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainFieldToResponse(field))
}

// deleteFieldHandler handles DELETE /fields/{fieldID}. Admin-only; the
// schema cascades the delete to the field's categories.
func (s *Server) deleteFieldHandler(w http.ResponseWriter, r *http.Request) {
	principal := observability.PrincipalFrom(r.Context())
	if !principal.IsAdmin() {
		writeError(w, http.StatusForbidden, "only admins can manage the taxonomy")
		return
	}

	fieldID, err := strconv.ParseInt(chi.URLParam(r, "fieldID"), 10, 64)
	if err != nil || fieldID <= 0 {
		s.writeDomainError(w, domain.NewValidationError("fieldId", "must be a positive integer"))
		return
	}

	if err := s.taxonomy.DeleteField(r.Context(), fieldID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "field deleted"})
}

// createCategoryRequest is the payload for creating a category under a field.
type createCategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// createCategoryHandler handles POST /fields/{fieldID}/categories. Admin-only.
func (s *Server) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	principal := observability.PrincipalFrom(r.Context())
	if !principal.IsAdmin() {
		writeError(w, http.StatusForbidden, "only admins can manage the taxonomy")
		return
	}

	fieldID, err := strconv.ParseInt(chi.URLParam(r, "fieldID"), 10, 64)
	if err != nil || fieldID <= 0 {
		s.writeDomainError(w, domain.NewValidationError("fieldId", "must be a positive integer"))
		return
	}

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		s.writeDomainError(w, validationErrorFrom(err))
		return
	}

	category, err := s.taxonomy.EnsureCategory(r.Context(), req.Name, fieldID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainCategoryToResponse(category))
}

// deleteCategoryHandler handles DELETE /categories/{categoryID}. Admin-only.
func (s *Server) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	principal := observability.PrincipalFrom(r.Context())
	if !principal.IsAdmin() {
		writeError(w, http.StatusForbidden, "only admins can manage the taxonomy")
		return
	}

	categoryID, err := strconv.ParseInt(chi.URLParam(r, "categoryID"), 10, 64)
	if err != nil || categoryID <= 0 {
		s.writeDomainError(w, domain.NewValidationError("categoryId", "must be a positive integer"))
		return
	}

	if err := s.taxonomy.DeleteCategory(r.Context(), categoryID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "category deleted"})
}

// paystackEvent is the subset of the payment provider's webhook payload the
// service records.
type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string     `json:"reference"`
		Amount    int64      `json:"amount"`
		Currency  string     `json:"currency"`
		PaidAt    *time.Time `json:"paid_at"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// donationWebhookHandler handles POST /donations/webhook. The provider signs
// the raw body with HMAC-SHA512; anything that fails verification is rejected
// before the payload is even parsed. Replayed references are acknowledged
// without re-recording, since the provider retries deliveries.
func (s *Server) donationWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	if !s.verifyPaystackSignature(body, r.Header.Get("x-paystack-signature")) {
		if s.metrics != nil {
			s.metrics.DonationsRejected.Inc()
		}
		s.logger.Warn().Msg("rejected donation webhook with bad signature")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var event paystackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	// Only successful charges are recorded; everything else is acknowledged
	// so the provider stops retrying.
	if event.Event != "charge.success" {
		writeJSON(w, http.StatusOK, messageResponse{Message: "event ignored"})
		return
	}
	if event.Data.Reference == "" {
		writeError(w, http.StatusBadRequest, "missing payment reference")
		return
	}

	exists, err := s.donations.ExistsByReference(ctx, event.Data.Reference)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if exists {
		writeJSON(w, http.StatusOK, messageResponse{Message: "donation already recorded"})
		return
	}

	donation := &domain.Donation{
		PaymentReference: event.Data.Reference,
		DonorEmail:       event.Data.Customer.Email,
		Amount:           event.Data.Amount,
		Currency:         event.Data.Currency,
		PaidAt:           event.Data.PaidAt,
	}

	// Attribute the donation to a registered user when the email matches.
	if donation.DonorEmail != "" {
		user, err := s.users.GetByEmail(ctx, donation.DonorEmail)
		switch {
		case err == nil:
			donation.DonorID = &user.ID
		case errors.Is(err, domain.ErrNotFound):
			// Anonymous-to-us donor; keep the email only.
		default:
			s.writeDomainError(w, err)
			return
		}
	}

	created, err := s.donations.Create(ctx, donation)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Raced a concurrent delivery of the same reference.
			writeJSON(w, http.StatusOK, messageResponse{Message: "donation already recorded"})
			return
		}
		s.writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.DonationsRecorded.Inc()
	}
	s.events.DonationReceived(ctx, created)
	donationLogger := observability.WithDonationContext(s.logger, created.PaymentReference, created.DonorEmail)
	donationLogger.Info().Msg("donation recorded")

	writeJSON(w, http.StatusOK, messageResponse{Message: "donation recorded"})
}

// verifyPaystackSignature checks the webhook body against the provider
// signature in constant time.
func (s *Server) verifyPaystackSignature(body []byte, signature string) bool {
	if s.paystackSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(s.paystackSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
