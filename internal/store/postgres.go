package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"staffops/internal/modal"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS company_records (
	company_id TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS record_backups (
	backup_id   TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	backup_type TEXT NOT NULL,
	description TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	data        JSON NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS record_backups_company_idx ON record_backups (company_id, created_at DESC);
`

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*FileStore)(nil)
)

// PostgresStore keeps each company document as one JSONB row guarded by a
// version column. Update is optimistic: it re-reads and retries when the
// version moved underneath it.
type PostgresStore struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
}

func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger, now: time.Now, maxRetries: 5}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, companyID string) (*modal.CompanyRecords, error) {
	if err := ValidateCompanyID(companyID); err != nil {
		return nil, err
	}
	doc, _, err := s.load(ctx, companyID)
	return doc, err
}

// load returns the document and whether a row exists.
func (s *PostgresStore) load(ctx context.Context, companyID string) (*modal.CompanyRecords, bool, error) {
	var (
		version int64
		raw     []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT version, doc FROM company_records WHERE company_id = $1`, companyID,
	).Scan(&version, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return modal.NewCompanyRecords(companyID), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read company %s: %w", companyID, err)
	}
	var doc modal.CompanyRecords
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("store: decode company %s: %w", companyID, err)
	}
	normalizeDoc(&doc, companyID)
	doc.Version = version
	return &doc, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, doc *modal.CompanyRecords) error {
	if err := ValidateCompanyID(doc.CompanyID); err != nil {
		return err
	}
	normalizeDoc(doc, doc.CompanyID)
	doc.Version++
	doc.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode company %s: %w", doc.CompanyID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO company_records (company_id, version, doc, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id)
		DO UPDATE SET version = EXCLUDED.version, doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, doc.CompanyID, doc.Version, raw, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save company %s: %w", doc.CompanyID, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, companyID string, fn UpdateFunc) (*modal.CompanyRecords, error) {
	if err := ValidateCompanyID(companyID); err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		doc, exists, err := s.load(ctx, companyID)
		if err != nil {
			return nil, err
		}
		expected := doc.Version
		if err := fn(doc); err != nil {
			return nil, err
		}
		doc.Version = expected + 1
		doc.UpdatedAt = s.now().UTC()
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("store: encode company %s: %w", companyID, err)
		}

		var affected int64
		if exists {
			tag, err := s.pool.Exec(ctx, `
				UPDATE company_records SET version = $3, doc = $4, updated_at = $5
				WHERE company_id = $1 AND version = $2
			`, companyID, expected, doc.Version, raw, doc.UpdatedAt)
			if err != nil {
				return nil, fmt.Errorf("store: update company %s: %w", companyID, err)
			}
			affected = tag.RowsAffected()
		} else {
			tag, err := s.pool.Exec(ctx, `
				INSERT INTO company_records (company_id, version, doc, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (company_id) DO NOTHING
			`, companyID, doc.Version, raw, doc.UpdatedAt)
			if err != nil {
				return nil, fmt.Errorf("store: insert company %s: %w", companyID, err)
			}
			affected = tag.RowsAffected()
		}
		if affected == 1 {
			return doc, nil
		}
		s.logger.Info("company document changed concurrently, retrying",
			zap.String("companyID", companyID),
			zap.Int64("expectedVersion", expected),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%w: company %s", ErrConflict, companyID)
}

func (s *PostgresStore) WriteBackup(ctx context.Context, b modal.Backup) (modal.Backup, error) {
	if err := ValidateCompanyID(b.CompanyID); err != nil {
		return modal.Backup{}, err
	}
	b = stampBackup(b, s.now)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO record_backups (backup_id, company_id, backup_type, description, checksum, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.CompanyID, string(b.BackupType), b.Description, b.Checksum, []byte(b.Data), b.CreatedAt)
	if err != nil {
		return modal.Backup{}, fmt.Errorf("store: write backup: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBackups(ctx context.Context, companyID string) ([]modal.Backup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT backup_id, company_id, backup_type, description, checksum, data, created_at
		FROM record_backups WHERE company_id = $1 ORDER BY created_at DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("store: list backups: %w", err)
	}
	defer rows.Close()

	var out []modal.Backup
	for rows.Next() {
		var (
			b          modal.Backup
			backupType string
			data       []byte
		)
		if err := rows.Scan(&b.ID, &b.CompanyID, &backupType, &b.Description, &b.Checksum, &data, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan backup: %w", err)
		}
		b.BackupType = modal.BackupType(backupType)
		b.Data = data
		out = append(out, b)
	}
	return out, rows.Err()
}
