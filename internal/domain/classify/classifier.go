// Package classify integrates the external pneumonia image classifier.
// The classifier is a remote model endpoint that scores chest X-rays; calls
// go through a circuit breaker so a struggling model service sheds load fast
// instead of stalling every upload.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Error reports a failed classification attempt. The upload that triggered
// it is preserved by the caller, so the attempt can be retried.
type Error struct {
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("classifier timed out: %v", e.Err)
	}
	return fmt.Sprintf("classifier unavailable: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classifier scores a chest X-ray image for pneumonia suspicion.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (suspected bool, err error)
}

// verdict is the classifier endpoint's response body.
type verdict struct {
	Suspected  bool    `json:"suspected"`
	Confidence float64 `json:"confidence"`
}

// HTTPClassifier posts images to a remote classifier endpoint as multipart
// form data and reads back a JSON verdict.
type HTTPClassifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPClassifier builds a classifier for the endpoint at url. Every call
// is capped at timeout and routed through a circuit breaker that opens after
// repeated consecutive failures.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "classifier",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, image []byte) (bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.classify(ctx, image)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, &Error{Err: err}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return false, &Error{Timeout: true, Err: err}
		}
		var ce *Error
		if errors.As(err, &ce) {
			return false, err
		}
		return false, &Error{Err: err}
	}
	return result.(bool), nil
}

func (c *HTTPClassifier) classify(ctx context.Context, image []byte) (bool, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "xray.jpg")
	if err != nil {
		return false, err
	}
	if _, err := part.Write(image); err != nil {
		return false, err
	}
	if err := mw.Close(); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, &Error{Timeout: true, Err: err}
		}
		return false, &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &Error{Err: fmt.Errorf("classifier returned %d: %s", resp.StatusCode, b)}
	}

	var v verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return false, &Error{Err: fmt.Errorf("decoding verdict: %w", err)}
	}
	return v.Suspected, nil
}
