package screening

import "context"

// Query carries list filtering and paging. Search is a case-insensitive
// substring match across patient name, contact fields, and the clinician
// note.
type Query struct {
	Search   string
	WorkerID int64 // restrict to cases logged by this worker; 0 means all
	Limit    int
	Offset   int
}

// Repository is the persistence port for cases. Implementations translate
// driver-level "no rows" conditions into ErrCaseNotFound.
type Repository interface {
	Insert(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id int64) (*Case, error)

	// Update applies the non-nil patch fields in a single statement and
	// bumps last_updated.
	Update(ctx context.Context, id int64, patch CasePatch) error

	// SetClassification records the triage verdict. A positive verdict
	// queues the case for clinician review; a negative one resolves it
	// without clinician involvement, dequeuing it if a prior verdict had
	// queued it.
	SetClassification(ctx context.Context, id int64, suspected bool) error

	// CompleteReview records the clinician verdict only if the case is
	// still awaiting review. It reports whether the write was applied, so
	// a concurrent second reviewer sees applied=false instead of silently
	// overwriting the first verdict.
	CompleteReview(ctx context.Context, id int64, clinicianID int64, confirmed bool, note *string) (applied bool, err error)

	SetClosed(ctx context.Context, id int64, closed bool) error
	SetImageRef(ctx context.Context, id int64, ref string) error
	Delete(ctx context.Context, id int64) error

	// List views. Each returns the page plus the unpaged total.
	List(ctx context.Context, q Query) ([]*Case, int, error)
	ListPendingReview(ctx context.Context, q Query) ([]*Case, int, error)
	ListReviewed(ctx context.Context, q Query) ([]*Case, int, error)
	ListConfirmed(ctx context.Context, q Query) ([]*Case, int, error)
	ListAISuspected(ctx context.Context, q Query) ([]*Case, int, error)
	ListClosed(ctx context.Context, q Query) ([]*Case, int, error)
	ListFollowUpsForWorker(ctx context.Context, workerID int64, q Query) ([]*Case, int, error)
}
