package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/domain"
)

// SectionStore defines the interface for section data persistence.
type SectionStore interface {
	// Create saves a new section to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, section *domain.Section) error

	// GetByID retrieves a section by its unique ID.
	// Returns ErrSectionNotFound if the section does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Section, error)

	// Update saves the full mutable state of an existing section: status,
	// progress counters, attempt id, chapter schedule, audits, heartbeat and
	// diagnostics. Returns ErrSectionNotFound if the section does not exist.
	Update(ctx context.Context, section *domain.Section) error

	// UpdateStatus updates only the status of an existing section.
	// Returns ErrSectionNotFound if the section does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SectionStatus) error

	// ClaimForGeneration atomically transitions a section into the generating
	// state. The claim succeeds when the section is in one of the claimable
	// states (ready, in_review), or is generating with a heartbeat older than
	// staleAfter. Returns ErrClaimFailed when another invocation holds the
	// section, so near-simultaneous triggers cannot both proceed.
	ClaimForGeneration(ctx context.Context, id uuid.UUID, staleAfter time.Duration) error

	// RefreshHeartbeat bumps the section's last-progress timestamp so the
	// reaper does not reclaim a job that is actively retrying.
	RefreshHeartbeat(ctx context.Context, id uuid.UUID) error

	// SetGenerationError records a non-fatal diagnostic string on the section
	// without changing its status.
	SetGenerationError(ctx context.Context, id uuid.UUID, diagnostic string) error

	// FindStaleGenerating returns sections whose status is generating and
	// whose heartbeat is older than the given threshold.
	FindStaleGenerating(ctx context.Context, olderThan time.Duration) ([]*domain.Section, error)

	// WithTx returns a SectionStore bound to the provided transaction.
	WithTx(tx *sql.Tx) SectionStore
}
