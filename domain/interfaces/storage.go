package interfaces

import "shopflow/domain/entities"

// RunStore persists scenario run records
type RunStore interface {
	// Append stores a finished run
	Append(record entities.RunRecord) error

	// List returns every stored run, oldest first
	List() ([]entities.RunRecord, error)
}
