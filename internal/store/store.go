// Package store persists one record document per company plus an
// append-only set of backups taken before destructive changes.
//
// Every mutation is a whole-document read-modify-write. The file backend
// serializes writers per company with a keyed mutex; the Postgres backend
// uses a version stamp and a conditional UPDATE, retrying on conflict.
// Neither gives atomicity across companies or across separate Update calls.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"staffops/internal/modal"
)

// ErrConflict is returned when an optimistic update kept losing to
// concurrent writers.
var ErrConflict = errors.New("store: concurrent update conflict")

// UpdateFunc mutates doc in place. It may run more than once when a backend
// retries after a conflict.
type UpdateFunc func(doc *modal.CompanyRecords) error

type Records interface {
	// Load returns the company document. A company with nothing on file
	// gets an empty default document, not an error.
	Load(ctx context.Context, companyID string) (*modal.CompanyRecords, error)
	Save(ctx context.Context, doc *modal.CompanyRecords) error
	Update(ctx context.Context, companyID string, fn UpdateFunc) (*modal.CompanyRecords, error)
}

type Backups interface {
	WriteBackup(ctx context.Context, b modal.Backup) (modal.Backup, error)
	ListBackups(ctx context.Context, companyID string) ([]modal.Backup, error)
}

type Store interface {
	Records
	Backups
}

var companyIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateCompanyID keeps company ids usable as file names.
func ValidateCompanyID(id string) error {
	if !companyIDRe.MatchString(id) {
		return fmt.Errorf("store: invalid company id %q", id)
	}
	return nil
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func normalizeDoc(doc *modal.CompanyRecords, companyID string) {
	if doc.CompanyID == "" {
		doc.CompanyID = companyID
	}
	if doc.Employees == nil {
		doc.Employees = []modal.Employee{}
	}
	if doc.Clients == nil {
		doc.Clients = []modal.Client{}
	}
	if doc.PlatformModules == nil {
		doc.PlatformModules = []modal.Module{}
	}
}
