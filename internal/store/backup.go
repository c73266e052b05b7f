package store

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"staffops/internal/modal"
)

const (
	backupExt           = ".json"
	compressedBackupExt = ".json.zst"
)

// Checksum is the hex BLAKE3 digest of backup data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyBackup checks a backup's data against its recorded checksum.
func VerifyBackup(b modal.Backup) error {
	if b.Checksum == "" {
		return nil
	}
	if got := Checksum(b.Data); got != b.Checksum {
		return fmt.Errorf("store: backup %s checksum mismatch", b.ID)
	}
	return nil
}

// stampBackup fills the id, creation time and checksum. Data is compacted
// first so the checksum matches what json.Marshal writes out.
func stampBackup(b modal.Backup, now func() time.Time) modal.Backup {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b.Data); err == nil {
		b.Data = buf.Bytes()
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now().UTC()
	}
	b.Checksum = Checksum(b.Data)
	return b
}

func (s *FileStore) WriteBackup(ctx context.Context, b modal.Backup) (modal.Backup, error) {
	if err := ValidateCompanyID(b.CompanyID); err != nil {
		return modal.Backup{}, err
	}
	b = stampBackup(b, s.now)

	dir := filepath.Join(s.dir, "backups", b.CompanyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return modal.Backup{}, fmt.Errorf("store: ensure backup dir: %w", err)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return modal.Backup{}, fmt.Errorf("store: encode backup: %w", err)
	}
	ext := backupExt
	if s.compress {
		data = s.encoder.EncodeAll(data, nil)
		ext = compressedBackupExt
	}
	name := fmt.Sprintf("%s_%s_%s%s", b.CreatedAt.Format("20060102T150405.000000000Z"), b.BackupType, b.ID, ext)
	if err := writeFileAtomic(filepath.Join(dir, name), data); err != nil {
		return modal.Backup{}, fmt.Errorf("store: write backup: %w", err)
	}
	return b, nil
}

// ListBackups returns a company's backups, newest first.
func (s *FileStore) ListBackups(ctx context.Context, companyID string) ([]modal.Backup, error) {
	if err := ValidateCompanyID(companyID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.dir, "backups", companyID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !(strings.HasSuffix(n, backupExt) || strings.HasSuffix(n, compressedBackupExt)) {
			continue
		}
		names = append(names, n)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	out := make([]modal.Backup, 0, len(names))
	for _, n := range names {
		b, err := s.readBackup(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *FileStore) readBackup(path string) (modal.Backup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return modal.Backup{}, fmt.Errorf("store: read backup: %w", err)
	}
	if strings.HasSuffix(path, compressedBackupExt) {
		raw, err = s.decoder.DecodeAll(raw, nil)
		if err != nil {
			return modal.Backup{}, fmt.Errorf("store: decompress backup %s: %w", filepath.Base(path), err)
		}
	}
	var b modal.Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return modal.Backup{}, fmt.Errorf("store: decode backup %s: %w", filepath.Base(path), err)
	}
	return b, nil
}
