package screening

import "testing"

func TestLifecycle(t *testing.T) {
	tests := []struct {
		name string
		c    Case
		want State
	}{
		{"fresh case", Case{}, StateNew},
		{"queued for review", Case{AwaitingClinicianReview: true}, StatePendingReview},
		{"reviewed", Case{ClinicianReviewed: true}, StateReviewed},
		{"closed masks everything", Case{ClinicianReviewed: true, CaseClosed: true}, StateClosed},
		{"closed before review", Case{AwaitingClinicianReview: true, CaseClosed: true}, StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Lifecycle(); got != tt.want {
				t.Errorf("Lifecycle() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCasePatch_IsZero(t *testing.T) {
	if !(CasePatch{}).IsZero() {
		t.Error("empty patch must be zero")
	}
	name := "Ada"
	if (CasePatch{FirstName: &name}).IsZero() {
		t.Error("patch with a field must not be zero")
	}
}

func TestCreateCaseInput_Validate(t *testing.T) {
	in := validInput()
	if err := in.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	in.City = ""
	if err := in.Validate(); err == nil {
		t.Fatal("expected error for missing city")
	}
}
