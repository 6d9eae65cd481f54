package repository

import "time"

// StoredRecord represents a row in the records table.
type StoredRecord struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
