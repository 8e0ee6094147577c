package screening

import (
	"context"

	"github.com/pneumo/pneumo/internal/platform/auth"
)

// Read-side views over the case table. All share the ActionReadCase gate;
// which rows a view returns depends on the workflow flags, not the caller.

// ListCases returns the active caseload, longest-waiting first. Closed cases
// are excluded; set q.WorkerID to narrow the view to one worker's cases.
func (s *Service) ListCases(ctx context.Context, p *auth.Principal, q Query) ([]*Case, int, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.List(ctx, q)
	return items, total, storageErr("list cases", err)
}

// ListPendingReview returns the clinician work queue: cases flagged by the
// classifier and not yet reviewed or closed, oldest first.
func (s *Service) ListPendingReview(ctx context.Context, p *auth.Principal, q Query) ([]*Case, int, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListPendingReview(ctx, q)
	return items, total, storageErr("list pending review", err)
}

// ListReviewed returns every case a clinician has ruled on, oldest verdict
// first, including closed ones.
func (s *Service) ListReviewed(ctx context.Context, p *auth.Principal, q Query) ([]*Case, int, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListReviewed(ctx, q)
	return items, total, storageErr("list reviewed", err)
}

// ListConfirmed returns the clinician-confirmed positives still open, most
// recent verdict first.
func (s *Service) ListConfirmed(ctx context.Context, p *auth.Principal, q Query) ([]*Case, int, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListConfirmed(ctx, q)
	return items, total, storageErr("list confirmed", err)
}

// ListClosed returns the archive of closed cases, most recently closed first.
func (s *Service) ListClosed(ctx context.Context, p *auth.Principal, q Query) ([]*Case, int, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListClosed(ctx, q)
	return items, total, storageErr("list closed", err)
}

// ListAISuspected returns cases the classifier flagged that still have no
// clinician verdict.
func (s *Service) ListAISuspected(ctx context.Context, p *auth.Principal, q Query) ([]*Case, int, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListAISuspected(ctx, q)
	return items, total, storageErr("list ai suspected", err)
}

// ListFollowUps returns the acting worker's reviewed, still-open cases that
// carry a clinician note, the instructions the worker must now act on. A
// note-less review leaves nothing to follow up.
func (s *Service) ListFollowUps(ctx context.Context, p *auth.Principal, q Query) ([]*Case, int, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListFollowUpsForWorker(ctx, p.ID, q)
	return items, total, storageErr("list follow ups", err)
}
