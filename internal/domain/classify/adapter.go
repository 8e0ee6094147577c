package classify

import "context"

// Recorder receives classification verdicts. It is satisfied by the
// screening service.
type Recorder interface {
	RecordClassification(ctx context.Context, caseID int64, suspected bool) error
}

// Adapter runs a case image through the classifier and records the verdict
// on the case.
type Adapter struct {
	classifier Classifier
	recorder   Recorder
}

func NewAdapter(classifier Classifier, recorder Recorder) *Adapter {
	return &Adapter{classifier: classifier, recorder: recorder}
}

// Triage classifies the image and records the result. When classification
// fails the case is left untouched: no verdict, not queued for review.
func (a *Adapter) Triage(ctx context.Context, caseID int64, image []byte) error {
	suspected, err := a.classifier.Classify(ctx, image)
	if err != nil {
		return err
	}
	return a.recorder.RecordClassification(ctx, caseID, suspected)
}
