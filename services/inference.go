package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"workload-predictor/backend/config"
	"workload-predictor/backend/models"
)

// Predictor submits one uploaded file to the inference service and resolves
// to the raw result payload. Implementations must not retain the file after
// returning.
type Predictor interface {
	Predict(ctx context.Context, filePath, filename string) (json.RawMessage, error)
}

// ErrStillQueued means the upstream reported queued on every attempt. It is
// not a failure; callers translate it to a "try again later" response.
var ErrStillQueued = errors.New("prediction still queued after all attempts")

// UpstreamError carries the upstream service's failure message through to
// the API response unmasked.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// InferenceClient talks to the hosted prediction endpoint over HTTP. The
// service may answer with a queued sentinel instead of a result; the client
// then waits a fixed backoff and resubmits, up to maxAttempts total.
type InferenceClient struct {
	predictURL  string
	maxAttempts int
	backoff     time.Duration
	client      *http.Client
}

func NewInferenceClient(cfg *config.Config) *InferenceClient {
	return &InferenceClient{
		predictURL:  strings.TrimRight(cfg.InferenceURL, "/") + "/" + cfg.EndpointName,
		maxAttempts: cfg.MaxPollAttempts,
		backoff:     cfg.PollBackoff,
		client:      &http.Client{Timeout: cfg.ClientTimeout},
	}
}

var _ Predictor = &InferenceClient{}

// Predict submits the file and polls while the service reports queued.
// Returns the raw result verbatim on success, ErrStillQueued when the
// attempt budget runs out, or the first non-queued failure without retry.
func (c *InferenceClient) Predict(ctx context.Context, filePath, filename string) (json.RawMessage, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		raw, queued, err := c.submitOnce(ctx, filePath, filename)
		if err != nil {
			return nil, err
		}
		if !queued {
			return raw, nil
		}

		if attempt == c.maxAttempts {
			break
		}
		log.Printf("Prediction queued (attempt %d/%d), retrying in %s", attempt, c.maxAttempts, c.backoff)

		timer := time.NewTimer(c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, ErrStillQueued
}

// submitOnce performs a single multipart POST. The queued flag is set when
// the response carries the queued discriminator, whether the status code
// was a success or an error.
func (c *InferenceClient) submitOnce(ctx context.Context, filePath, filename string) (json.RawMessage, bool, error) {
	body, contentType, err := encodeUpload(filePath, filename)
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, body)
	if err != nil {
		return nil, false, errors.Wrap(err, "building inference request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, errors.Wrap(err, "reading inference response")
	}

	if isQueuedPayload(payload) {
		return nil, true, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &UpstreamError{Message: upstreamMessage(resp.StatusCode, payload)}
	}

	return payload, false, nil
}

// encodeUpload reads the temp file into a multipart body under the single
// field name the inference service expects.
func encodeUpload(filePath, filename string) (*bytes.Buffer, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", errors.Wrap(err, "encoding upload")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", errors.Wrap(err, "encoding upload")
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, "encoding upload")
	}

	return buf, writer.FormDataContentType(), nil
}

func isQueuedPayload(payload []byte) bool {
	var sentinel models.QueuedSentinel
	if err := json.Unmarshal(payload, &sentinel); err != nil {
		return false
	}
	return sentinel.IsQueued()
}

func upstreamMessage(status int, payload []byte) string {
	var body models.UpstreamErrorBody
	if err := json.Unmarshal(payload, &body); err == nil {
		if msg := body.BestMessage(); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("inference service returned status %d", status)
}
