package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

func TestPgTaxonomyRepository_ListFields(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgTaxonomyRepository(mock)

	mock.ExpectQuery(`SELECT id, name FROM fields ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow(int64(2), "Engineering").
			AddRow(int64(1), "Life Sciences"))

	fields, err := repo.ListFields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Engineering", fields[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTaxonomyRepository_ListCategories(t *testing.T) {
	t.Run("returns the field's categories", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)
		ctx := context.Background()

		mock.ExpectQuery(`SELECT id, name FROM fields WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
				AddRow(int64(1), "Life Sciences"))
		mock.ExpectQuery(`SELECT id, name, field_id FROM categories WHERE field_id = \$1 ORDER BY name`).
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "field_id"}).
				AddRow(int64(3), "Genomics", int64(1)).
				AddRow(int64(4), "Parasitology", int64(1)))

		categories, err := repo.ListCategories(ctx, 1)
		require.NoError(t, err)
		require.Len(t, categories, 2)
		assert.Equal(t, "Genomics", categories[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for an unknown field", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectQuery(`SELECT id, name FROM fields WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.ListCategories(context.Background(), 99)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTaxonomyRepository_GetCategory(t *testing.T) {
	t.Run("returns the category", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectQuery(`SELECT id, name, field_id FROM categories WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "field_id"}).
				AddRow(int64(3), "Genomics", int64(1)))

		category, err := repo.GetCategory(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, "Genomics", category.Name)
		assert.Equal(t, int64(1), category.FieldID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for an unknown id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectQuery(`SELECT id, name, field_id FROM categories WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetCategory(context.Background(), 99)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTaxonomyRepository_EnsureField(t *testing.T) {
	t.Run("creates or returns the field", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectQuery(`INSERT INTO fields`).
			WithArgs("Agricultural Sciences").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
				AddRow(int64(4), "Agricultural Sciences"))

		field, err := repo.EnsureField(context.Background(), "Agricultural Sciences")
		require.NoError(t, err)
		assert.Equal(t, int64(4), field.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty names", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		_, err = repo.EnsureField(context.Background(), "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgTaxonomyRepository_EnsureCategory(t *testing.T) {
	t.Run("creates the category under the field", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectQuery(`INSERT INTO categories`).
			WithArgs("Soil Science", int64(4)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "field_id"}).
				AddRow(int64(9), "Soil Science", int64(4)))

		category, err := repo.EnsureCategory(context.Background(), "Soil Science", 4)
		require.NoError(t, err)
		assert.Equal(t, int64(9), category.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for an unknown field", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectQuery(`INSERT INTO categories`).
			WithArgs("Soil Science", int64(99)).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		_, err = repo.EnsureCategory(context.Background(), "Soil Science", 99)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTaxonomyRepository_DeleteField(t *testing.T) {
	t.Run("deletes the field", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectExec(`DELETE FROM fields WHERE id = \$1`).
			WithArgs(int64(2)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err = repo.DeleteField(context.Background(), 2)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for an unknown field", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectExec(`DELETE FROM fields WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = repo.DeleteField(context.Background(), 99)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTaxonomyRepository_DeleteCategory(t *testing.T) {
	t.Run("deletes the category", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectExec(`DELETE FROM categories WHERE id = \$1`).
			WithArgs(int64(5)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err = repo.DeleteCategory(context.Background(), 5)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for an unknown category", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgTaxonomyRepository(mock)

		mock.ExpectExec(`DELETE FROM categories WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = repo.DeleteCategory(context.Background(), 99)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
