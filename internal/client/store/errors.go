package store

import (
	"errors"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
)

var (
	// ErrBusy is returned when an entry already has a mutation in flight.
	ErrBusy = errors.New("entry has a pending mutation")
	// ErrSuperseded marks a failed mutation whose rollback was skipped
	// because a newer mutation took over the entry.
	ErrSuperseded = errors.New("superseded by a newer mutation")
	ErrNotFound   = errors.New("entry not found")

	ErrInvalidDraft = models.ErrInvalidDraft
)
