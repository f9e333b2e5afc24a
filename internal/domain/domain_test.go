package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple title",
			input:    "Malaria Genomics in West Africa",
			expected: "malaria-genomics-in-west-africa",
		},
		{
			name:     "punctuation collapsed to single hyphens",
			input:    "CRISPR/Cas9: A Review!",
			expected: "crispr-cas9-a-review",
		},
		{
			name:     "digits preserved",
			input:    "COVID-19 Sequencing, Wave 3",
			expected: "covid-19-sequencing-wave-3",
		},
		{
			name:     "leading and trailing separators trimmed",
			input:    "  --- Soil Health ---  ",
			expected: "soil-health",
		},
		{
			name:     "unicode letters lowercased",
			input:    "Étude Génomique",
			expected: "étude-génomique",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "only punctuation",
			input:    "?!...",
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Slugify(tc.input))
		})
	}
}

func TestSlugify_TruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("genomics ", 40)
	slug := Slugify(long)
	assert.LessOrEqual(t, len(slug), 100)
	assert.False(t, strings.HasSuffix(slug, "-"), "truncation must not leave a trailing hyphen")
}

func TestDisambiguateSlug(t *testing.T) {
	assert.Equal(t, "soil-health-1715500000", DisambiguateSlug("soil-health", 1715500000))
}

func TestPaperStatus(t *testing.T) {
	t.Run("valid states", func(t *testing.T) {
		for _, s := range []PaperStatus{PaperStatusPending, PaperStatusPublished, PaperStatusRejected} {
			assert.True(t, s.Valid(), "expected %s to be valid", s)
		}
		assert.False(t, PaperStatus("draft").Valid())
		assert.False(t, PaperStatus("").Valid())
	})

	t.Run("reviewed states", func(t *testing.T) {
		assert.False(t, PaperStatusPending.Reviewed())
		assert.True(t, PaperStatusPublished.Reviewed())
		assert.True(t, PaperStatusRejected.Reviewed())
	})
}

func TestPrincipal(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		p := Anonymous()
		assert.True(t, p.IsAnonymous())
		assert.False(t, p.Authenticated())
		assert.False(t, p.Owns(7))
	})

	t.Run("zero value is anonymous", func(t *testing.T) {
		var p Principal
		assert.True(t, p.IsAnonymous())
	})

	t.Run("user owns own papers only", func(t *testing.T) {
		p := Principal{Role: RoleUser, ID: 7}
		assert.True(t, p.Authenticated())
		assert.True(t, p.Owns(7))
		assert.False(t, p.Owns(8))
	})

	t.Run("admin does not own", func(t *testing.T) {
		p := Principal{Role: RoleAdmin, ID: 7}
		assert.True(t, p.IsAdmin())
		assert.False(t, p.Owns(7), "admin access comes from role checks, not ownership")
	})
}

func TestDomainErrors(t *testing.T) {
	t.Run("validation error unwraps to invalid input", func(t *testing.T) {
		err := NewValidationError("title", "too short")
		assert.True(t, errors.Is(err, ErrInvalidInput))

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "title", ve.Field)
	})

	t.Run("not found error carries resource and reference", func(t *testing.T) {
		err := NewNotFoundError("paper", "soil-health")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Contains(t, err.Error(), "paper")
		assert.Contains(t, err.Error(), "soil-health")
	})

	t.Run("already exists error unwraps to conflict", func(t *testing.T) {
		err := NewAlreadyExistsError("keyword", "malaria")
		assert.True(t, errors.Is(err, ErrAlreadyExists))
	})

	t.Run("external api error unwraps to its cause", func(t *testing.T) {
		err := NewExternalAPIError("filestore", 502, "bad gateway", ErrServiceUnavailable)
		assert.True(t, errors.Is(err, ErrServiceUnavailable))

		var apiErr *ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 502, apiErr.StatusCode)
		assert.Equal(t, "filestore", apiErr.Source)
	})
}
