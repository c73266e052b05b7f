package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffops/internal/modal"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestLoadMissingCompanyReturnsDefault(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	doc, err := s.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", doc.CompanyID)
	assert.Empty(t, doc.Employees)
	assert.NotNil(t, doc.PlatformModules)
	assert.Zero(t, doc.Version)
}

func TestLoadCorruptDocumentFails(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "companies", "acme.json"), []byte("{not json"), 0o644))

	_, err = s.Load(context.Background(), "acme")
	assert.Error(t, err)
}

func TestRejectsUnsafeCompanyID(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "../etc")
	assert.Error(t, err)
}

func TestUpdatePersistsAndBumpsVersion(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), WithClock(fixedClock()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Update(ctx, "acme", func(doc *modal.CompanyRecords) error {
		doc.Employees = append(doc.Employees, modal.Employee{ID: "1", Name: "William Markham", Status: modal.EmployeeActive})
		return nil
	})
	require.NoError(t, err)

	doc, err := s.Load(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, doc.Employees, 1)
	assert.Equal(t, int64(1), doc.Version)
	assert.False(t, doc.UpdatedAt.IsZero())
}

func TestUpdateSerializesWritersPerCompany(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Update(ctx, "acme", func(doc *modal.CompanyRecords) error {
				doc.PlatformModules = append(doc.PlatformModules, modal.Module{ID: doc.NextID(modal.CollectionModules), Name: "m" + strconv.Itoa(i)})
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := s.Load(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, doc.PlatformModules, writers)
	assert.Equal(t, int64(writers), doc.Version)
}

func TestUpdateErrorLeavesDocumentUntouched(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Update(ctx, "acme", func(doc *modal.CompanyRecords) error {
		doc.Clients = append(doc.Clients, modal.Client{ID: "1", Name: "ABC"})
		return modal.ErrEntityNotFound
	})
	assert.ErrorIs(t, err, modal.ErrEntityNotFound)

	doc, err := s.Load(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, doc.Clients)
}

func TestBackupsRoundTrip(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		t.Run("compressed="+strconv.FormatBool(compressed), func(t *testing.T) {
			s, err := NewFileStore(t.TempDir(), WithCompressedBackups(compressed), WithClock(fixedClock()))
			require.NoError(t, err)
			ctx := context.Background()

			data, _ := json.Marshal(modal.Employee{ID: "1", Name: "William Markham"})
			first, err := s.WriteBackup(ctx, modal.Backup{CompanyID: "acme", BackupType: modal.BackupEmployeeDeletion, Description: "first", Data: data})
			require.NoError(t, err)
			_, err = s.WriteBackup(ctx, modal.Backup{CompanyID: "acme", BackupType: modal.BackupModuleDeletion, Description: "second", Data: []byte(`{"id": "4"}`)})
			require.NoError(t, err)

			list, err := s.ListBackups(ctx, "acme")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "second", list[0].Description)
			assert.Equal(t, first.ID, list[1].ID)
			assert.Equal(t, first.Checksum, list[1].Checksum)
			for _, b := range list {
				assert.NoError(t, VerifyBackup(b))
			}
		})
	}
}

func TestVerifyBackupDetectsTampering(t *testing.T) {
	b := modal.Backup{ID: "x", Data: []byte(`{"id":"1"}`)}
	b.Checksum = Checksum(b.Data)
	b.Data = []byte(`{"id":"2"}`)
	assert.Error(t, VerifyBackup(b))
}

func TestListBackupsForUnknownCompany(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	list, err := s.ListBackups(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}
