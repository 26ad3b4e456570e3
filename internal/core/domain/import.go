package domain

import "time"

type ImportStatus string

const (
	ImportStatusUploaded   ImportStatus = "uploaded"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusReady      ImportStatus = "ready"
	ImportStatusFailed     ImportStatus = "failed"
)

// ImportJob tracks one bulk load of a jurisdiction's duty schedule.
type ImportJob struct {
	ID           string       `json:"id"`
	Jurisdiction string       `json:"jurisdiction"`
	Filename     string       `json:"filename"`
	StoragePath  string       `json:"storage_path"`
	RowCount     int          `json:"row_count"`
	Status       ImportStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Jurisdiction is one supported arrival country with its own duty table.
type Jurisdiction struct {
	Code    string   `json:"code" yaml:"code"`
	Name    string   `json:"name" yaml:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
}

// ProgramRule maps origin countries onto a preferential program key.
type ProgramRule struct {
	Key     string   `json:"key" yaml:"key"`
	Name    string   `json:"name" yaml:"name"`
	Origins []string `json:"origins" yaml:"origins"`
}
