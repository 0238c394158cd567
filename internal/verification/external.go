package verification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	SubmissionIDHeader = "X-Submission-ID"

	defaultDispatchTimeout = 30 * time.Second
	defaultBaseDelay       = 200 * time.Millisecond
	errorBodyLimit         = 4 << 10
)

// ExternalServiceClassifier posts the submission to a verification endpoint
// as multipart form data. Results arrive later through the callback, so a
// successful dispatch yields a deferred outcome.
type ExternalServiceClassifier struct {
	endpoint    string
	httpClient  *http.Client
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
}

func NewExternalServiceClassifier(endpoint string, httpClient *http.Client, timeout time.Duration, maxAttempts int) *ExternalServiceClassifier {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &ExternalServiceClassifier{
		endpoint:    endpoint,
		httpClient:  httpClient,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

func (c *ExternalServiceClassifier) Endpoint() string {
	return c.endpoint
}

func (c *ExternalServiceClassifier) Classify(ctx context.Context, sub Submission) (Outcome, error) {
	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: encode submission: %v", ErrDispatch, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		retryable, err := c.post(ctx, sub.SubmissionID, body, contentType)
		if err == nil {
			return Outcome{Deferred: true}, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxAttempts {
			break
		}
		delay := c.baseDelay * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return Outcome{}, fmt.Errorf("%w: %w", ErrDispatch, ctx.Err())
		case <-time.After(delay):
		}
	}
	return Outcome{}, fmt.Errorf("%w: %w", ErrDispatch, lastErr)
}

// post sends one attempt. It reports whether a failure is worth retrying:
// transport errors and 5xx responses are, anything else is not.
func (c *ExternalServiceClassifier) post(ctx context.Context, submissionID string, body []byte, contentType string) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", contentType)
	if submissionID != "" {
		req.Header.Set(SubmissionIDHeader, submissionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	msg := strings.TrimSpace(string(detail))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return resp.StatusCode >= 500, fmt.Errorf("verifier responded %d: %s", resp.StatusCode, msg)
}

func encodeSubmission(sub Submission) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", sub.FileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sub.Content); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("orderId", sub.ProcessID); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("stage", string(sub.Stage)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
