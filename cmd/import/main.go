// Package main provides a CLI tool for seeding reference data: the
// field/category taxonomy, the keyword vocabulary and institutions.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nubianresearch/research-repository-service/internal/config"
	"github.com/nubianresearch/research-repository-service/internal/database"
	"github.com/nubianresearch/research-repository-service/internal/observability"
	"github.com/nubianresearch/research-repository-service/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Define CLI flags.
	taxonomyPath := flag.String("fields", "", "CSV of field,category rows to ensure")
	keywordsPath := flag.String("keywords", "", "CSV of name,alias1;alias2 keyword rows to ensure")
	institutionsPath := flag.String("institutions", "", "CSV of institution names to ensure")
	flag.Parse()

	if *taxonomyPath == "" && *keywordsPath == "" && *institutionsPath == "" {
		flag.Usage()
		return fmt.Errorf("no input files specified")
	}

	// Load configuration (database settings from env/config file).
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging with console output for the CLI tool.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "import").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if *taxonomyPath != "" {
		if err := importTaxonomy(ctx, db, *taxonomyPath, logger); err != nil {
			return fmt.Errorf("import taxonomy: %w", err)
		}
	}
	if *keywordsPath != "" {
		if err := importKeywords(ctx, db, *keywordsPath, logger); err != nil {
			return fmt.Errorf("import keywords: %w", err)
		}
	}
	if *institutionsPath != "" {
		if err := importInstitutions(ctx, db, *institutionsPath, logger); err != nil {
			return fmt.Errorf("import institutions: %w", err)
		}
	}

	return nil
}

// importTaxonomy ensures every field,category pair in the CSV exists.
// Re-running against the same file is a no-op.
func importTaxonomy(ctx context.Context, db *database.DB, path string, logger zerolog.Logger) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}

	taxonomy := repository.NewPgTaxonomyRepository(db)
	ensured := 0
	for i, row := range rows {
		if len(row) < 2 {
			return fmt.Errorf("row %d: expected field,category, got %d columns", i+1, len(row))
		}
		fieldName := strings.TrimSpace(row[0])
		categoryName := strings.TrimSpace(row[1])
		if fieldName == "" || categoryName == "" {
			continue
		}

		field, err := taxonomy.EnsureField(ctx, fieldName)
		if err != nil {
			return fmt.Errorf("ensure field %q: %w", fieldName, err)
		}
		if _, err := taxonomy.EnsureCategory(ctx, categoryName, field.ID); err != nil {
			return fmt.Errorf("ensure category %q: %w", categoryName, err)
		}
		ensured++
	}

	logger.Info().Int("rows", ensured).Str("path", path).Msg("taxonomy imported")
	return nil
}

// importKeywords ensures every keyword in the CSV exists. Rows are
// name,alias1;alias2 where the alias column is optional; aliases replace
// whatever the keyword currently carries.
func importKeywords(ctx context.Context, db *database.DB, path string, logger zerolog.Logger) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}

	keywords := repository.NewPgKeywordRepository(db)
	ensured := 0
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}

		ids, err := keywords.Reconcile(ctx, nil, []string{name})
		if err != nil {
			return fmt.Errorf("reconcile keyword %q: %w", name, err)
		}

		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			var aliases []string
			for _, alias := range strings.Split(row[1], ";") {
				if alias = strings.TrimSpace(alias); alias != "" {
					aliases = append(aliases, alias)
				}
			}
			if len(aliases) > 0 {
				if err := keywords.SetAliases(ctx, ids[0], aliases); err != nil {
					return fmt.Errorf("set aliases for keyword %q: %w", name, err)
				}
			}
		}
		ensured++
	}

	logger.Info().Int("keywords", ensured).Str("path", path).Msg("keywords imported")
	return nil
}

// importInstitutions ensures every institution name in the CSV exists.
func importInstitutions(ctx context.Context, db *database.DB, path string, logger zerolog.Logger) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}

	users := repository.NewPgUserRepository(db)
	ensured := 0
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		if _, err := users.EnsureInstitution(ctx, name); err != nil {
			return fmt.Errorf("ensure institution %q: %w", name, err)
		}
		ensured++
	}

	logger.Info().Int("institutions", ensured).Str("path", path).Msg("institutions imported")
	return nil
}

// readCSV reads all records from a CSV file, tolerating ragged rows.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}
