package notification

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"
)

// CaseNotifier turns case review outcomes into patient email. Delivery is
// best effort and never fails the review that triggered it.
type CaseNotifier struct {
	manager *Manager
	log     zerolog.Logger
	enabled func(ctx context.Context) bool
}

// NewCaseNotifier builds a CaseNotifier. The enabled hook is consulted per
// notification so the admin toggle applies without a restart; a nil hook
// means always enabled.
func NewCaseNotifier(manager *Manager, log zerolog.Logger, enabled func(ctx context.Context) bool) *CaseNotifier {
	return &CaseNotifier{manager: manager, log: log, enabled: enabled}
}

// CaseConfirmed emails the patient after a clinician confirms their case.
// Patients without an email address on file are skipped.
func (n *CaseNotifier) CaseConfirmed(ctx context.Context, caseID int64, patientName, email string) {
	if email == "" {
		return
	}
	if n.enabled != nil && !n.enabled(ctx) {
		return
	}

	data := map[string]string{
		"case_id":      strconv.FormatInt(caseID, 10),
		"patient_name": patientName,
	}
	if _, err := n.manager.SendFromTemplate(ctx, TemplateCaseConfirmed, data, email); err != nil {
		n.log.Error().Err(err).Int64("case_id", caseID).Msg("case confirmation email failed")
	}
}
