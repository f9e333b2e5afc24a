package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// paperSelectColumns is the enriched projection shared by List and GetByIDOrSlug.
// Keywords are aggregated per paper as a JSON array, empty when none attached.
const paperSelectColumns = `
	p.id, p.title, p.slug, p.abstract, p.notes, p.status,
	p.category_id, p.user_id, p.reviewed_by, p.rejection_reason,
	p.cid, p.file_url, p.created_at, p.updated_at,
	u.id, u.name, u.email,
	c.id, c.name, c.field_id,
	f.id, f.name,
	COALESCE(kw.keywords, '[]')`

// paperFromClause joins papers to their author, taxonomy placement and
// aggregated keywords. Conditions built by listConditions reference the
// aliases p, c and f.
const paperFromClause = `
	FROM papers p
	INNER JOIN users u ON u.id = p.user_id
	INNER JOIN categories c ON c.id = p.category_id
	INNER JOIN fields f ON f.id = c.field_id
	LEFT JOIN LATERAL (
		SELECT json_agg(
			json_build_object('id', k.id, 'name', k.name, 'aliases', k.aliases)
			ORDER BY k.name
		) AS keywords
		FROM paper_keywords pk
		INNER JOIN keywords k ON k.id = pk.keyword_id
		WHERE pk.paper_id = p.id
	) kw ON true`

// listConditions maps the requesting principal and filter to the SQL predicate
// list and its positional arguments. It is a pure function so the visibility
// rules can be tested without a database.
//
// Visibility rules:
//   - Admins see every status; an explicit status filter narrows to it.
//   - An authenticated user filtering on their own userId sees every status,
//     again narrowed by an explicit status filter.
//   - Everyone else (anonymous requesters, users browsing other users' papers
//     or no particular user) sees only published papers; any status filter
//     they supply is overridden.
func listConditions(principal domain.Principal, f PaperFilter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	ownScope := f.UserID != nil && principal.Owns(*f.UserID)
	switch {
	case principal.IsAdmin() || ownScope:
		if f.Status != nil {
			conditions = append(conditions, "p.status = "+arg(*f.Status))
		}
	default:
		conditions = append(conditions, "p.status = "+arg(domain.PaperStatusPublished))
	}

	if f.UserID != nil {
		conditions = append(conditions, "p.user_id = "+arg(*f.UserID))
	}
	if f.CategoryID != nil {
		conditions = append(conditions, "p.category_id = "+arg(*f.CategoryID))
	}
	if f.FieldID != nil {
		conditions = append(conditions, "c.field_id = "+arg(*f.FieldID))
	}
	if f.Search != "" {
		// Escape LIKE special characters to prevent pattern injection.
		escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(f.Search)
		pattern := arg("%" + escaped + "%")
		conditions = append(conditions, fmt.Sprintf(
			"(p.title ILIKE %[1]s OR p.abstract ILIKE %[1]s OR c.name ILIKE %[1]s OR f.name ILIKE %[1]s)",
			pattern))
	}

	return conditions, args
}

// List retrieves papers visible to the principal matching the filter criteria.
func (r *PgPaperRepository) List(ctx context.Context, principal domain.Principal, filter PaperFilter) ([]*domain.PaperDetails, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions, args := listConditions(principal, filter)

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total matching records before pagination
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM papers p
		INNER JOIN categories c ON c.id = p.category_id
		INNER JOIN fields f ON f.id = c.field_id
		%s`, whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	// Query with pagination. Creation time descending, id ascending as the
	// deterministic tiebreak for papers created in the same instant.
	selectQuery := fmt.Sprintf(`
		SELECT %s
		%s
		%s
		ORDER BY p.created_at DESC, p.id ASC
		LIMIT $%d OFFSET $%d`,
		paperSelectColumns, paperFromClause, whereClause, len(args)+1, len(args)+2)

	args = append(args, filter.Size, filter.Offset())

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.PaperDetails, 0, filter.Size)
	for rows.Next() {
		paper, err := scanPaperDetailsFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, totalCount, nil
}

// Get retrieves a paper by reference without visibility scoping.
func (r *PgPaperRepository) Get(ctx context.Context, ref string) (*domain.PaperDetails, error) {
	if ref == "" {
		return nil, domain.NewValidationError("id", "paper reference is required")
	}

	var condition string
	var args []interface{}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		condition = "(p.id = $1 OR p.slug = $2)"
		args = append(args, id, ref)
	} else {
		condition = "p.slug = $1"
		args = append(args, ref)
	}

	query := fmt.Sprintf(`
		SELECT %s
		%s
		WHERE %s`,
		paperSelectColumns, paperFromClause, condition)

	row := r.db.QueryRow(ctx, query, args...)
	paper, err := scanPaperDetails(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", ref)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	return paper, nil
}

// GetByIDOrSlug retrieves a single paper the principal is allowed to see.
func (r *PgPaperRepository) GetByIDOrSlug(ctx context.Context, principal domain.Principal, ref string) (*domain.PaperDetails, error) {
	if ref == "" {
		return nil, domain.NewValidationError("id", "paper reference is required")
	}

	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		conditions = append(conditions, "(p.id = "+arg(id)+" OR p.slug = "+arg(ref)+")")
	} else {
		conditions = append(conditions, "p.slug = "+arg(ref))
	}

	// Hidden papers read as absent for everyone but the owner and admins,
	// so existence is never leaked through a 403.
	switch {
	case principal.IsAdmin():
	case principal.IsUser():
		conditions = append(conditions,
			"(p.status = "+arg(domain.PaperStatusPublished)+" OR p.user_id = "+arg(principal.ID)+")")
	default:
		conditions = append(conditions, "p.status = "+arg(domain.PaperStatusPublished))
	}

	query := fmt.Sprintf(`
		SELECT %s
		%s
		WHERE %s`,
		paperSelectColumns, paperFromClause, strings.Join(conditions, " AND "))

	row := r.db.QueryRow(ctx, query, args...)
	paper, err := scanPaperDetails(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", ref)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	return paper, nil
}

// Create inserts a new paper row with a collision-free slug.
func (r *PgPaperRepository) Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.Title == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}
	if paper.Status == "" {
		paper.Status = domain.PaperStatusPending
	}

	slug := domain.Slugify(paper.Title)
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM papers WHERE slug = $1)`, slug).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if taken {
		slug = domain.DisambiguateSlug(slug, time.Now().UnixMilli())
	}
	paper.Slug = slug

	now := time.Now().UTC()
	query := `
		INSERT INTO papers (
			title, slug, abstract, notes, status,
			category_id, user_id, cid, file_url,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10
		)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		paper.Title,
		paper.Slug,
		paper.Abstract,
		paper.Notes,
		paper.Status,
		paper.CategoryID,
		paper.UserID,
		paper.CID,
		paper.FileURL,
		now,
	).Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgForeignKeyViolation {
				return nil, domain.NewNotFoundError("category", strconv.FormatInt(paper.CategoryID, 10))
			}
			if pgErr.Code == pgUniqueViolation {
				return nil, domain.NewAlreadyExistsError("paper", paper.Slug)
			}
		}
		return nil, fmt.Errorf("failed to create paper: %w", err)
	}

	return paper, nil
}

// Update persists the paper's mutable columns. The slug is stable for the
// lifetime of the row; title edits do not regenerate it.
func (r *PgPaperRepository) Update(ctx context.Context, paper *domain.Paper) error {
	if paper == nil {
		return domain.NewValidationError("paper", "paper cannot be nil")
	}

	query := `
		UPDATE papers SET
			title = $1,
			abstract = $2,
			notes = $3,
			status = $4,
			category_id = $5,
			reviewed_by = $6,
			rejection_reason = $7,
			cid = $8,
			file_url = $9,
			updated_at = $10
		WHERE id = $11`

	result, err := r.db.Exec(ctx, query,
		paper.Title,
		paper.Abstract,
		paper.Notes,
		paper.Status,
		paper.CategoryID,
		paper.ReviewedBy,
		paper.RejectionReason,
		paper.CID,
		paper.FileURL,
		time.Now().UTC(),
		paper.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.NewNotFoundError("category", strconv.FormatInt(paper.CategoryID, 10))
		}
		return fmt.Errorf("failed to update paper: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", strconv.FormatInt(paper.ID, 10))
	}

	return nil
}

// Delete removes the paper and its keyword attachments.
func (r *PgPaperRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM paper_keywords WHERE paper_id = $1`, id); err != nil {
		return fmt.Errorf("failed to detach keywords: %w", err)
	}

	result, err := r.db.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", strconv.FormatInt(id, 10))
	}

	return nil
}

// paperDetailsScanDest holds the destination pointers for scanning an
// enriched paper row.
type paperDetailsScanDest struct {
	paper        domain.PaperDetails
	keywordsJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperDetailsScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.Title, &d.paper.Slug, &d.paper.Abstract, &d.paper.Notes, &d.paper.Status,
		&d.paper.CategoryID, &d.paper.UserID, &d.paper.ReviewedBy, &d.paper.RejectionReason,
		&d.paper.CID, &d.paper.FileURL, &d.paper.CreatedAt, &d.paper.UpdatedAt,
		&d.paper.User.ID, &d.paper.User.Name, &d.paper.User.Email,
		&d.paper.Category.ID, &d.paper.Category.Name, &d.paper.Category.FieldID,
		&d.paper.Field.ID, &d.paper.Field.Name,
		&d.keywordsJSON,
	}
}

// finalize performs post-scan processing: unmarshals the keyword aggregate.
func (d *paperDetailsScanDest) finalize() (*domain.PaperDetails, error) {
	d.paper.Keywords = []domain.Keyword{}
	if len(d.keywordsJSON) > 0 {
		if err := json.Unmarshal(d.keywordsJSON, &d.paper.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	for i := range d.paper.Keywords {
		if d.paper.Keywords[i].Aliases == nil {
			d.paper.Keywords[i].Aliases = []string{}
		}
	}
	return &d.paper, nil
}

// scanPaperDetails scans a single row into a PaperDetails.
func scanPaperDetails(row pgx.Row) (*domain.PaperDetails, error) {
	var dest paperDetailsScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPaperDetailsFromRows scans the current row from pgx.Rows into a PaperDetails.
func scanPaperDetailsFromRows(rows pgx.Rows) (*domain.PaperDetails, error) {
	var dest paperDetailsScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
