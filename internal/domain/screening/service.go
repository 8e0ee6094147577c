package screening

import (
	"bytes"
	"context"
	"io"

	"github.com/pneumo/pneumo/internal/platform/auth"
	"github.com/pneumo/pneumo/internal/platform/imaging"
)

// Triager submits a case image for automated classification. Implementations
// record the verdict back through the service, so a Triage call that returns
// nil means ai_suspected has been set and the queue flag derived from it.
type Triager interface {
	Triage(ctx context.Context, caseID int64, image []byte) error
}

// Notifier is told when a clinician confirms a case, so follow-up outreach
// can be kicked off. An empty email means the patient has no address on file.
type Notifier interface {
	CaseConfirmed(ctx context.Context, caseID int64, patientName, email string)
}

// Service owns the case lifecycle. Every externally triggered operation takes
// the acting principal and checks it against the role table before touching
// storage.
type Service struct {
	repo     Repository
	images   imaging.Store
	triager  Triager
	notifier Notifier
}

func NewService(repo Repository, images imaging.Store) *Service {
	return &Service{repo: repo, images: images}
}

// SetTriager attaches the automated classifier (optional).
func (s *Service) SetTriager(t Triager) { s.triager = t }

// SetNotifier attaches the follow-up notifier (optional).
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) authorize(p *auth.Principal, action auth.Action) error {
	if !auth.Allow(p, action) {
		e := &AuthorizationError{Action: action}
		if p != nil {
			e.Role = p.Role
		}
		return e
	}
	return nil
}

// CreateCase registers a new screening case owned by the acting worker. The
// case starts with no verdict of any kind: ai_suspected and
// condition_confirmed are NULL, all workflow flags are false.
func (s *Service) CreateCase(ctx context.Context, p *auth.Principal, in CreateCaseInput) (*Case, error) {
	if err := s.authorize(p, auth.ActionCreateCase); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &Case{
		FirstName:          in.FirstName,
		Surname:            in.Surname,
		Address:            in.Address,
		Address2:           in.Address2,
		City:               in.City,
		State:              in.State,
		Zip:                in.Zip,
		Email:              in.Email,
		Phone:              in.Phone,
		DOB:                in.DOB,
		Sex:                in.Sex,
		Height:             in.Height,
		Weight:             in.Weight,
		BloodType:          in.BloodType,
		SmokerStatus:       in.SmokerStatus,
		AlcoholConsumption: in.AlcoholConsumption,
		Allergies:          in.Allergies,
		VaccinationHistory: in.VaccinationHistory,
		Fever:              in.Fever,
		Cough:              in.Cough,
		CoughDuration:      in.CoughDuration,
		CoughType:          in.CoughType,
		ChestPain:          in.ChestPain,
		ShortnessOfBreath:  in.ShortnessOfBreath,
		Fatigue:            in.Fatigue,
		ChillsSweating:     in.ChillsSweating,
		WorkerID:           p.ID,
		WorkerNotes:        in.WorkerNotes,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, storageErr("create case", err)
	}
	return c, nil
}

// GetCase returns a single case by ID.
func (s *Service) GetCase(ctx context.Context, p *auth.Principal, id int64) (*Case, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get case", err)
	}
	return c, nil
}

// UpdateCase applies a partial edit to the intake fields. Closed cases are
// read-only until reopened, and an empty patch is rejected rather than
// silently succeeding.
func (s *Service) UpdateCase(ctx context.Context, p *auth.Principal, id int64, patch CasePatch) (*Case, error) {
	if err := s.authorize(p, auth.ActionUpdateCase); err != nil {
		return nil, err
	}
	if patch.IsZero() {
		return nil, &ValidationError{Field: "patch", Reason: "no fields to update"}
	}
	if patch.ClinicianNote != nil && p.Role != auth.RoleClinician {
		return nil, &ValidationError{Field: "clinician_note", Reason: "only a clinician may edit the review note"}
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("update case", err)
	}
	if c.CaseClosed {
		return nil, &InvalidStateError{CaseID: id, State: StateClosed, Reason: "closed cases are read-only"}
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, storageErr("update case", err)
	}
	c, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("update case", err)
	}
	return c, nil
}

// AttachImage stores an X-ray for the case and, when a triager is wired,
// submits it for automated classification. The image is kept even when
// classification fails, so the upload is never lost to a flaky classifier;
// the case simply stays unqueued until a retry or a manual review.
func (s *Service) AttachImage(ctx context.Context, p *auth.Principal, id int64, fileName string, content io.Reader) (*Case, error) {
	if err := s.authorize(p, auth.ActionUpdateCase); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("attach image", err)
	}
	if c.CaseClosed {
		return nil, &InvalidStateError{CaseID: id, State: StateClosed, Reason: "closed cases are read-only"}
	}
	if c.ClinicianReviewed {
		return nil, &InvalidStateError{CaseID: id, State: StateReviewed, Reason: "case has already been reviewed"}
	}

	data, err := io.ReadAll(io.LimitReader(content, imaging.MaxImageSize+1))
	if err != nil {
		return nil, storageErr("attach image", err)
	}

	meta, err := s.images.Put(ctx, fileName, bytes.NewReader(data))
	if err != nil {
		switch err {
		case imaging.ErrInvalidImage, imaging.ErrMissingFileName:
			return nil, &ValidationError{Field: "image", Reason: err.Error()}
		case imaging.ErrImageTooLarge:
			return nil, &ValidationError{Field: "image", Reason: err.Error()}
		}
		return nil, storageErr("attach image", err)
	}

	if err := s.repo.SetImageRef(ctx, id, meta.Ref); err != nil {
		return nil, storageErr("attach image", err)
	}

	if s.triager != nil {
		if err := s.triager.Triage(ctx, id, data); err != nil {
			return nil, err
		}
	}

	c, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("attach image", err)
	}
	return c, nil
}

// OpenImage streams the stored X-ray for a case. The caller must close the
// returned reader.
func (s *Service) OpenImage(ctx context.Context, p *auth.Principal, id int64) (io.ReadCloser, *imaging.Metadata, error) {
	if err := s.authorize(p, auth.ActionReadCase); err != nil {
		return nil, nil, err
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, storageErr("open image", err)
	}
	if c.ImageRef == nil {
		return nil, nil, &ValidationError{Field: "image", Reason: "case has no image attached"}
	}

	rc, meta, err := s.images.Open(ctx, *c.ImageRef)
	if err != nil {
		return nil, nil, storageErr("open image", err)
	}
	return rc, meta, nil
}

// RecordClassification stores the automated triage verdict. A positive
// verdict queues the case for clinician review; a negative one resolves it
// without clinician involvement. It is called by the classifier adapter, not
// by users, so there is no principal gate. A verdict never overrides a
// clinician: once reviewed or closed, late classifier results are dropped.
func (s *Service) RecordClassification(ctx context.Context, caseID int64, suspected bool) error {
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return storageErr("record classification", err)
	}
	if c.CaseClosed {
		return &InvalidStateError{CaseID: caseID, State: StateClosed, Reason: "case is closed"}
	}
	if c.ClinicianReviewed {
		return &InvalidStateError{CaseID: caseID, State: StateReviewed, Reason: "case has already been reviewed"}
	}
	if err := s.repo.SetClassification(ctx, caseID, suspected); err != nil {
		return storageErr("record classification", err)
	}
	return nil
}

// SubmitClinicianReview records the clinician verdict on a case awaiting
// review. The write is conditional at the storage layer: two clinicians
// racing on the same case produce exactly one recorded verdict, and the loser
// gets an InvalidStateError instead of silently overwriting the winner.
func (s *Service) SubmitClinicianReview(ctx context.Context, p *auth.Principal, id int64, confirmed bool, note *string) (*Case, error) {
	if err := s.authorize(p, auth.ActionSubmitReview); err != nil {
		return nil, err
	}

	applied, err := s.repo.CompleteReview(ctx, id, p.ID, confirmed, note)
	if err != nil {
		return nil, storageErr("submit review", err)
	}
	if !applied {
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, storageErr("submit review", err)
		}
		return nil, &InvalidStateError{CaseID: id, State: c.Lifecycle(), Reason: "case is not awaiting review"}
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("submit review", err)
	}
	if confirmed && s.notifier != nil {
		email := ""
		if c.Email != nil {
			email = *c.Email
		}
		s.notifier.CaseConfirmed(ctx, c.ID, c.FirstName+" "+c.Surname, email)
	}
	return c, nil
}

// CloseCase marks the case closed. Closing an already closed case is a no-op
// success. The workflow flags are left untouched so ReopenCase restores the
// exact pre-closure state.
func (s *Service) CloseCase(ctx context.Context, p *auth.Principal, id int64) (*Case, error) {
	return s.setClosed(ctx, p, id, true)
}

// ReopenCase clears the closed flag, returning the case to whatever state it
// held before closure. Reopening an open case is a no-op success.
func (s *Service) ReopenCase(ctx context.Context, p *auth.Principal, id int64) (*Case, error) {
	return s.setClosed(ctx, p, id, false)
}

func (s *Service) setClosed(ctx context.Context, p *auth.Principal, id int64, closed bool) (*Case, error) {
	if err := s.authorize(p, auth.ActionCloseReopenCase); err != nil {
		return nil, err
	}
	if err := s.repo.SetClosed(ctx, id, closed); err != nil {
		return nil, storageErr("close case", err)
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("close case", err)
	}
	return c, nil
}

// DeleteCase permanently removes a case and its stored image.
func (s *Service) DeleteCase(ctx context.Context, p *auth.Principal, id int64) error {
	if err := s.authorize(p, auth.ActionDeleteCase); err != nil {
		return err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return storageErr("delete case", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storageErr("delete case", err)
	}
	if c.ImageRef != nil {
		// Best effort. An orphaned image is harmless; the case row is gone.
		_ = s.images.Delete(ctx, *c.ImageRef)
	}
	return nil
}
