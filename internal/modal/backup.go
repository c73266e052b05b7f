package modal

import (
	"encoding/json"
	"time"
)

// Backup is a snapshot of records taken before a destructive mutation.
type Backup struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"companyId"`
	BackupType  BackupType      `json:"backupType"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	Checksum    string          `json:"checksum,omitempty"`
	Data        json.RawMessage `json:"data"`
}
