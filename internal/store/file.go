package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"staffops/internal/modal"
)

// FileStore keeps each company document at <dir>/companies/<id>.json and
// backups under <dir>/backups/<id>/.
type FileStore struct {
	dir      string
	compress bool
	now      func() time.Time
	logger   *zap.Logger
	locks    keyedMutex

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

type FileOption func(*FileStore)

// WithCompressedBackups writes backups as zstd-compressed .json.zst files.
func WithCompressedBackups(on bool) FileOption {
	return func(s *FileStore) { s.compress = on }
}

func WithClock(now func() time.Time) FileOption {
	return func(s *FileStore) { s.now = now }
}

func WithLogger(l *zap.Logger) FileOption {
	return func(s *FileStore) { s.logger = l }
}

func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{dir: dir, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	for _, sub := range []string{"companies", "backups"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("store: ensure %s dir: %w", sub, err)
		}
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("store: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("store: zstd decoder: %w", err)
	}
	s.encoder, s.decoder = enc, dec
	return s, nil
}

func (s *FileStore) companyPath(companyID string) string {
	return filepath.Join(s.dir, "companies", companyID+".json")
}

func (s *FileStore) Load(ctx context.Context, companyID string) (*modal.CompanyRecords, error) {
	if err := ValidateCompanyID(companyID); err != nil {
		return nil, err
	}
	return s.load(companyID)
}

func (s *FileStore) load(companyID string) (*modal.CompanyRecords, error) {
	data, err := os.ReadFile(s.companyPath(companyID))
	if errors.Is(err, fs.ErrNotExist) {
		return modal.NewCompanyRecords(companyID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read company %s: %w", companyID, err)
	}
	var doc modal.CompanyRecords
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: decode company %s: %w", companyID, err)
	}
	normalizeDoc(&doc, companyID)
	return &doc, nil
}

func (s *FileStore) Save(ctx context.Context, doc *modal.CompanyRecords) error {
	if err := ValidateCompanyID(doc.CompanyID); err != nil {
		return err
	}
	unlock := s.locks.lock(doc.CompanyID)
	defer unlock()
	return s.write(doc)
}

// Update holds the company lock across load, fn and write, so concurrent
// updates to one company apply one after another.
func (s *FileStore) Update(ctx context.Context, companyID string, fn UpdateFunc) (*modal.CompanyRecords, error) {
	if err := ValidateCompanyID(companyID); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(companyID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.load(companyID)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := s.write(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *FileStore) write(doc *modal.CompanyRecords) error {
	normalizeDoc(doc, doc.CompanyID)
	doc.Version++
	doc.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode company %s: %w", doc.CompanyID, err)
	}
	if err := writeFileAtomic(s.companyPath(doc.CompanyID), data); err != nil {
		return fmt.Errorf("store: write company %s: %w", doc.CompanyID, err)
	}
	s.logger.Debug("company document written",
		zap.String("companyID", doc.CompanyID),
		zap.Int64("version", doc.Version))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
