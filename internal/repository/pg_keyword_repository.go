package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// keywordSearchLimit caps fuzzy search results.
const keywordSearchLimit = 10

// Compile-time interface verification.
var _ KeywordRepository = (*PgKeywordRepository)(nil)

// PgKeywordRepository is a PostgreSQL implementation of KeywordRepository.
type PgKeywordRepository struct {
	db DBTX
}

// NewPgKeywordRepository creates a new PostgreSQL keyword repository.
func NewPgKeywordRepository(db DBTX) *PgKeywordRepository {
	return &PgKeywordRepository{db: db}
}

// GetByIDs retrieves keywords for all given ids, erroring on unknown ids.
func (r *PgKeywordRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Keyword, error) {
	if len(ids) == 0 {
		return []*domain.Keyword{}, nil
	}

	unique := dedupeIDs(ids)

	query := `
		SELECT id, name, aliases
		FROM keywords
		WHERE id = ANY($1)
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to get keywords by ids: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(unique))
	keywords := make([]*domain.Keyword, 0, len(unique))
	for rows.Next() {
		kw, err := scanKeywordFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		found[kw.ID] = true
		keywords = append(keywords, kw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keywords: %w", err)
	}

	var missing []string
	for _, id := range unique {
		if !found[id] {
			missing = append(missing, fmt.Sprintf("%d", id))
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewValidationError("keywordIds",
			fmt.Sprintf("unknown keyword ids: %s", strings.Join(missing, ", ")))
	}

	return keywords, nil
}

// FilterExisting returns the subset of ids that resolve to keyword rows.
func (r *PgKeywordRepository) FilterExisting(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id FROM keywords WHERE id = ANY($1) ORDER BY id`, dedupeIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to filter keywords: %w", err)
	}
	defer rows.Close()

	var existing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan keyword id: %w", err)
		}
		existing = append(existing, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keyword ids: %w", err)
	}

	return existing, nil
}

// GetByName retrieves a keyword by its exact name.
func (r *PgKeywordRepository) GetByName(ctx context.Context, name string) (*domain.Keyword, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "keyword name is required")
	}

	query := `
		SELECT id, name, aliases
		FROM keywords
		WHERE name = $1`

	row := r.db.QueryRow(ctx, query, name)
	kw, err := scanKeyword(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("keyword", name)
		}
		return nil, fmt.Errorf("failed to get keyword by name: %w", err)
	}

	return kw, nil
}

// Create inserts a new keyword with no aliases.
func (r *PgKeywordRepository) Create(ctx context.Context, name string) (*domain.Keyword, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "keyword name is required")
	}

	query := `
		INSERT INTO keywords (name, aliases)
		VALUES ($1, '[]'::jsonb)
		RETURNING id, name, aliases`

	row := r.db.QueryRow(ctx, query, name)
	kw, err := scanKeyword(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.NewAlreadyExistsError("keyword", name)
		}
		return nil, fmt.Errorf("failed to create keyword: %w", err)
	}

	return kw, nil
}

// SetAliases replaces the keyword's alias list.
func (r *PgKeywordRepository) SetAliases(ctx context.Context, id int64, aliases []string) error {
	if aliases == nil {
		aliases = []string{}
	}
	encoded, err := json.Marshal(aliases)
	if err != nil {
		return fmt.Errorf("failed to encode aliases: %w", err)
	}

	result, err := r.db.Exec(ctx, `UPDATE keywords SET aliases = $2 WHERE id = $1`, id, encoded)
	if err != nil {
		return fmt.Errorf("failed to set keyword aliases: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("keyword", fmt.Sprintf("%d", id))
	}

	return nil
}

// Reconcile resolves existing ids and new names into the deduplicated
// attachment set.
func (r *PgKeywordRepository) Reconcile(ctx context.Context, existingIDs []int64, newNames []string) ([]int64, error) {
	result := make(map[int64]bool, len(existingIDs)+len(newNames))

	if len(existingIDs) > 0 {
		keywords, err := r.GetByIDs(ctx, existingIDs)
		if err != nil {
			return nil, err
		}
		for _, kw := range keywords {
			result[kw.ID] = true
		}
	}

	for _, name := range newNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		kw, err := r.GetByName(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			kw, err = r.Create(ctx, name)
			// Lost a create race: another request inserted the same name
			// first. The winner's row is the one to attach.
			if errors.Is(err, domain.ErrAlreadyExists) {
				kw, err = r.GetByName(ctx, name)
			}
		}
		if err != nil {
			return nil, err
		}
		result[kw.ID] = true
	}

	ids := make([]int64, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// EnsureAttached attaches the keyword to the paper, idempotently.
func (r *PgKeywordRepository) EnsureAttached(ctx context.Context, paperID, keywordID int64) (bool, error) {
	query := `
		INSERT INTO paper_keywords (paper_id, keyword_id)
		VALUES ($1, $2)
		ON CONFLICT (paper_id, keyword_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query, paperID, keywordID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return false, domain.NewNotFoundError("paper or keyword",
				fmt.Sprintf("paper=%d, keyword=%d", paperID, keywordID))
		}
		return false, fmt.Errorf("failed to attach keyword: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// Detach removes the attachments between the paper and the given keywords.
func (r *PgKeywordRepository) Detach(ctx context.Context, paperID int64, keywordIDs []int64) error {
	if len(keywordIDs) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx,
		`DELETE FROM paper_keywords WHERE paper_id = $1 AND keyword_id = ANY($2)`,
		paperID, dedupeIDs(keywordIDs))
	if err != nil {
		return fmt.Errorf("failed to detach keywords: %w", err)
	}

	return nil
}

// Search finds keywords trigram-similar to the query over name and aliases.
func (r *PgKeywordRepository) Search(ctx context.Context, query string) ([]*domain.Keyword, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("q", "search query is required")
	}

	// The % operator uses the pg_trgm similarity threshold; ranking takes
	// the best score across the name and every alias.
	sql := fmt.Sprintf(`
		SELECT id, name, aliases
		FROM keywords
		WHERE name %% $1
			OR EXISTS (
				SELECT 1 FROM jsonb_array_elements_text(aliases) AS a(alias)
				WHERE a.alias %% $1
			)
		ORDER BY GREATEST(
			similarity(name, $1),
			COALESCE((
				SELECT MAX(similarity(a.alias, $1))
				FROM jsonb_array_elements_text(aliases) AS a(alias)
			), 0)
		) DESC
		LIMIT %d`, keywordSearchLimit)

	rows, err := r.db.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search keywords: %w", err)
	}
	defer rows.Close()

	keywords := make([]*domain.Keyword, 0, keywordSearchLimit)
	for rows.Next() {
		kw, err := scanKeywordFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keywords: %w", err)
	}

	return keywords, nil
}

// dedupeIDs returns the ids with duplicates removed, preserving first-seen order.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}

// keywordScanDest holds the destination pointers for scanning a Keyword row.
type keywordScanDest struct {
	keyword     domain.Keyword
	aliasesJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *keywordScanDest) destinations() []interface{} {
	return []interface{}{
		&d.keyword.ID, &d.keyword.Name, &d.aliasesJSON,
	}
}

// finalize performs post-scan processing: unmarshals the aliases array.
func (d *keywordScanDest) finalize() (*domain.Keyword, error) {
	if len(d.aliasesJSON) > 0 {
		if err := json.Unmarshal(d.aliasesJSON, &d.keyword.Aliases); err != nil {
			return nil, fmt.Errorf("failed to unmarshal aliases: %w", err)
		}
	}
	if d.keyword.Aliases == nil {
		d.keyword.Aliases = []string{}
	}
	return &d.keyword, nil
}

// scanKeyword scans a single row into a Keyword.
func scanKeyword(row pgx.Row) (*domain.Keyword, error) {
	var dest keywordScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanKeywordFromRows scans the current row from pgx.Rows into a Keyword.
func scanKeywordFromRows(rows pgx.Rows) (*domain.Keyword, error) {
	var dest keywordScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
