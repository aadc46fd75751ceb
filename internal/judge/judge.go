package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTimeout is returned when the judge did not answer within the configured
// deadline. Callers must surface it as its own condition, never as an
// incorrect answer.
var ErrTimeout = errors.New("judge timeout")

// Verdict is the opaque pass/fail report of one execution.
type Verdict struct {
	Stdout   string `json:"stdout"`
	ExitCode int    `json:"exit_code"`
}

// Runner executes untrusted code somewhere else. Possibly slow, possibly
// failing; always called with a bounded context.
type Runner interface {
	Run(ctx context.Context, code, language, stdin string) (Verdict, error)
}

// HTTPClient talks to an external judge service over HTTP.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Run(ctx context.Context, code, language, stdin string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"code":     code,
		"language": language,
		"stdin":    stdin,
	})
	if err != nil {
		return Verdict{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Verdict{}, ErrTimeout
		}
		return Verdict{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("judge returned %d", resp.StatusCode)
	}
	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Verdict{}, err
	}
	return v, nil
}
