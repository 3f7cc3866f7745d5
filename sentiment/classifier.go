// Package sentiment talks to the external review sentiment model
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Neutral is used when no prediction is available
const Neutral = "Neutral"

// Classifier predicts the sentiment label of a review text with a confidence in [0,1]
type Classifier interface {
	Classify(ctx context.Context, text string) (string, float64, error)
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// HTTPClassifier calls a model server exposing POST /predict
type HTTPClassifier struct {
	client *resty.Client
}

// NewHTTPClassifier creates a client for the model server at baseURL
func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("Content-Type", "application/json")
	return &HTTPClassifier{client: client}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	var out predictResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(predictRequest{Text: text}).
		SetResult(&out).
		Post("/predict")
	if err != nil {
		return "", 0, fmt.Errorf("sentiment request failed: %w", err)
	}
	if resp.IsError() {
		return "", 0, fmt.Errorf("sentiment server returned %d", resp.StatusCode())
	}
	if out.Label == "" {
		return "", 0, errors.New("sentiment server returned no label")
	}
	return out.Label, clamp(out.Confidence), nil
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
