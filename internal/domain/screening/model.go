package screening

import (
	"time"
)

// State is the derived lifecycle state of a case. It is computed from the
// workflow flags rather than stored as a column.
type State string

const (
	StateNew           State = "new"
	StatePendingReview State = "pending_review"
	StateReviewed      State = "reviewed"
	StateClosed        State = "closed"
)

/// Case maps to the cases table: one patient screening record tracked through
// intake, automated triage, clinician review, and closure.
type Case struct {
	ID int64 `db:"id" json:"id"`

	// Demographics and clinical intake payload. Inert with respect to the
	// lifecycle; validated for presence only.
	FirstName          string  `db:"first_name" json:"first_name"`
	Surname            string  `db:"surname" json:"surname"`
	Address            string  `db:"address" json:"address"`
	Address2           *string `db:"address_2" json:"address_2,omitempty"`
	City               string  `db:"city" json:"city"`
	State              string  `db:"state" json:"state"`
	Zip                string  `db:"zip" json:"zip"`
	Email              *string `db:"email" json:"email,omitempty"`
	Phone              *string `db:"phone" json:"phone,omitempty"`
	DOB                string  `db:"dob" json:"dob"`
	Sex                string  `db:"sex" json:"sex"`
	Height             float64 `db:"height" json:"height"`
	Weight             float64 `db:"weight" json:"weight"`
	BloodType          string  `db:"blood_type" json:"blood_type"`
	SmokerStatus       string  `db:"smoker_status" json:"smoker_status"`
	AlcoholConsumption string  `db:"alcohol_consumption" json:"alcohol_consumption"`
	Allergies          string  `db:"allergies" json:"allergies"`
	VaccinationHistory string  `db:"vaccination_history" json:"vaccination_history"`

	// Symptoms.
	Fever             bool    `db:"fever" json:"fever"`
	Cough             bool    `db:"cough" json:"cough"`
	CoughDuration     *int    `db:"cough_duration" json:"cough_duration,omitempty"`
	CoughType         *string `db:"cough_type" json:"cough_type,omitempty"`
	ChestPain         bool    `db:"chest_pain" json:"chest_pain"`
	ShortnessOfBreath bool    `db:"shortness_of_breath" json:"shortness_of_breath"`
	Fatigue           bool    `db:"fatigue" json:"fatigue"`
	ChillsSweating    bool    `db:"chills_sweating" json:"chills_sweating"`

	// Ownership. WorkerID is set at creation and never changes; ClinicianID
	// is filled in when a clinician records a review.
	WorkerID    int64  `db:"worker_id" json:"worker_id"`
	ClinicianID *int64 `db:"clinician_id" json:"clinician_id,omitempty"`

	// Workflow.
	ImageRef                *string `db:"image_ref" json:"image_ref,omitempty"`
	AISuspected             *bool   `db:"ai_suspected" json:"ai_suspected,omitempty"`
	AwaitingClinicianReview bool    `db:"awaiting_clinician_review" json:"awaiting_clinician_review"`
	ClinicianReviewed       bool    `db:"clinician_reviewed" json:"clinician_reviewed"`
	ConditionConfirmed      *bool   `db:"condition_confirmed" json:"condition_confirmed,omitempty"`
	ClinicianNote           *string `db:"clinician_note" json:"clinician_note,omitempty"`
	WorkerNotes             *string `db:"worker_notes" json:"worker_notes,omitempty"`
	CaseClosed              bool    `db:"case_closed" json:"case_closed"`

	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Lifecycle derives the lifecycle state from the workflow flags. Closure
// masks the other flags, which stay untouched so a reopened case resumes
// exactly where it left off.
func (c *Case) Lifecycle() State {
	switch {
	case c.CaseClosed:
		return StateClosed
	case c.ClinicianReviewed:
		return StateReviewed
	case c.AwaitingClinicianReview:
		return StatePendingReview
	default:
		return StateNew
	}
}

// CasePatch is a typed partial update. Only non-nil fields are written, and
// the whole patch is applied as a single atomic UPDATE.
type CasePatch struct {
	FirstName          *string  `json:"first_name,omitempty"`
	Surname            *string  `json:"surname,omitempty"`
	Address            *string  `json:"address,omitempty"`
	Address2           *string  `json:"address_2,omitempty"`
	City               *string  `json:"city,omitempty"`
	State              *string  `json:"state,omitempty"`
	Zip                *string  `json:"zip,omitempty"`
	Email              *string  `json:"email,omitempty"`
	Phone              *string  `json:"phone,omitempty"`
	DOB                *string  `json:"dob,omitempty"`
	Sex                *string  `json:"sex,omitempty"`
	Height             *float64 `json:"height,omitempty"`
	Weight             *float64 `json:"weight,omitempty"`
	BloodType          *string  `json:"blood_type,omitempty"`
	SmokerStatus       *string  `json:"smoker_status,omitempty"`
	AlcoholConsumption *string  `json:"alcohol_consumption,omitempty"`
	Allergies          *string  `json:"allergies,omitempty"`
	VaccinationHistory *string  `json:"vaccination_history,omitempty"`
	Fever              *bool    `json:"fever,omitempty"`
	Cough              *bool    `json:"cough,omitempty"`
	CoughDuration      *int     `json:"cough_duration,omitempty"`
	CoughType          *string  `json:"cough_type,omitempty"`
	ChestPain          *bool    `json:"chest_pain,omitempty"`
	ShortnessOfBreath  *bool    `json:"shortness_of_breath,omitempty"`
	Fatigue            *bool    `json:"fatigue,omitempty"`
	ChillsSweating     *bool    `json:"chills_sweating,omitempty"`
	WorkerNotes        *string  `json:"worker_notes,omitempty"`
	ClinicianNote      *string  `json:"clinician_note,omitempty"`
}

// IsZero reports whether the patch carries no fields.
func (p CasePatch) IsZero() bool {
	return p == (CasePatch{})
}

// CreateCaseInput is the intake form payload for a new case.
type CreateCaseInput struct {
	FirstName          string   `json:"first_name"`
	Surname            string   `json:"surname"`
	Address            string   `json:"address"`
	Address2           *string  `json:"address_2,omitempty"`
	City               string   `json:"city"`
	State              string   `json:"state"`
	Zip                string   `json:"zip"`
	Email              *string  `json:"email,omitempty"`
	Phone              *string  `json:"phone,omitempty"`
	DOB                string   `json:"dob"`
	Sex                string   `json:"sex"`
	Height             float64  `json:"height"`
	Weight             float64  `json:"weight"`
	BloodType          string   `json:"blood_type"`
	SmokerStatus       string   `json:"smoker_status"`
	AlcoholConsumption string   `json:"alcohol_consumption"`
	Allergies          string   `json:"allergies"`
	VaccinationHistory string   `json:"vaccination_history"`
	Fever              bool     `json:"fever"`
	Cough              bool     `json:"cough"`
	CoughDuration      *int     `json:"cough_duration,omitempty"`
	CoughType          *string  `json:"cough_type,omitempty"`
	ChestPain          bool     `json:"chest_pain"`
	ShortnessOfBreath  bool     `json:"shortness_of_breath"`
	Fatigue            bool     `json:"fatigue"`
	ChillsSweating     bool     `json:"chills_sweating"`
	WorkerNotes        *string  `json:"worker_notes,omitempty"`
}

// Validate checks the required intake fields.
func (in *CreateCaseInput) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"first_name", in.FirstName},
		{"surname", in.Surname},
		{"address", in.Address},
		{"city", in.City},
		{"state", in.State},
		{"zip", in.Zip},
		{"dob", in.DOB},
		{"sex", in.Sex},
	}
	for _, f := range required {
		if f.value == "" {
			return &ValidationError{Field: f.name, Reason: "required"}
		}
	}
	return nil
}
