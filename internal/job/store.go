package job

import "context"

// Store is the durable mapping from job id to job record. Every method is a
// single logical transaction at the implementation level: SetSlot never
// interferes with a concurrent SetSlot on a distinct slot, and
// UpdateStatus is serialized so a terminal job can never be reopened.
type Store interface {
	// CreateJob inserts a new job in StatusPending and returns its id.
	CreateJob(ctx context.Context, userRef string, kind Kind, request RequestPayload) (string, error)

	// GetJob returns the current record for jobID, or ErrNotFound.
	GetJob(ctx context.Context, jobID string) (Record, error)

	// UpdateStatus transitions jobID to status, stamping StartedAt or
	// CompletedAt as appropriate. errMsg is recorded on the job when status
	// is StatusFailed. Returns ErrInvalidTransition if the move is not legal
	// for the job's current status.
	UpdateStatus(ctx context.Context, jobID string, status Status, errMsg string) error

	// SetSlot writes value into the named slot of jobID. For SlotCharts,
	// value must be a map[string]Chart and is merged key-by-key into any
	// existing content; every other slot is replaced wholesale. Repeating a
	// SetSlot call with an identical value is a no-op with respect to
	// observable state (idempotent).
	SetSlot(ctx context.Context, jobID string, slot Slot, value any) error
}
