package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationPattern matches migration files such as 0001_name.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is a single schema migration.
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of <dataset>.schema_migrations.
type AppliedMigration struct {
	Version   int64               `bigquery:"version"`
	Name      string              `bigquery:"name"`
	AppliedAt time.Time           `bigquery:"applied_at"`
	Checksum  bigquery.NullString `bigquery:"checksum"`
	AppliedBy bigquery.NullString `bigquery:"applied_by"`
}

// LoadMigrations reads *.sql files from fsys in version order and fills in
// the {{PROJECT_ID}} and {{DATASET_ID}} placeholders. Checksums are taken
// before substitution so the same migration matches across datasets.
func LoadMigrations(fsys fs.FS, project, dataset string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("LoadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("LoadMigrations: version %04d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("LoadMigrations: reading %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// PendingMigrations returns the migrations whose version is not applied.
// An applied migration whose checksum no longer matches is an error.
func PendingMigrations(all []Migration, applied []AppliedMigration) ([]Migration, error) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[int(am.Version)] = am
	}

	var pending []Migration
	for _, m := range all {
		am, ok := done[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if am.Checksum.Valid && am.Checksum.StringVal != m.Checksum {
			return nil, fmt.Errorf("migration %04d_%s changed after it was applied", m.Version, m.Name)
		}
	}
	return pending, nil
}

// Migrate creates the warehouse tables, applying each pending embedded
// migration once and recording it in schema_migrations. It returns how many
// migrations ran.
func (s *BigQuerySink) Migrate(ctx context.Context, appliedBy string, log zerolog.Logger) (int, error) {
	project := s.project

	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}
	all, err := LoadMigrations(sub, project, s.dataset)
	if err != nil {
		return 0, err
	}

	if err := s.exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, project, s.dataset), nil); err != nil {
		return 0, fmt.Errorf("Migrate: ensuring schema_migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx, project)
	if err != nil {
		return 0, err
	}

	pending, err := PendingMigrations(all, applied)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	for _, m := range pending {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		if err := s.exec(ctx, m.SQL, nil); err != nil {
			return 0, fmt.Errorf("Migrate: executing %04d_%s: %w", m.Version, m.Name, err)
		}

		err := s.exec(ctx, fmt.Sprintf(`
			INSERT INTO `+"`%s.%s.schema_migrations`"+`
			(version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
		`, project, s.dataset), []bigquery.QueryParameter{
			{Name: "version", Value: m.Version},
			{Name: "name", Value: m.Name},
			{Name: "checksum", Value: m.Checksum},
			{Name: "applied_by", Value: appliedBy},
		})
		if err != nil {
			return 0, fmt.Errorf("Migrate: recording %04d_%s: %w", m.Version, m.Name, err)
		}
	}

	return len(pending), nil
}

func (s *BigQuerySink) appliedMigrations(ctx context.Context, project string) ([]AppliedMigration, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, project, s.dataset))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("appliedMigrations: query read: %w", err)
	}

	var applied []AppliedMigration
	for {
		var am AppliedMigration
		err := it.Next(&am)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("appliedMigrations: iter next: %w", err)
		}
		applied = append(applied, am)
	}
	return applied, nil
}

// exec runs a statement and waits for it to finish.
func (s *BigQuerySink) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
