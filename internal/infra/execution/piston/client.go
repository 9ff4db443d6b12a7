// Package piston is the execution gateway adapter: a thin client for a
// Piston-compatible sandbox API that compiles/runs submitted source.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
)

// DefaultBaseURL is the public Piston endpoint.
const DefaultBaseURL = "https://emkc.org/api/v2/piston/execute"

// request is the wire format of an execute call.
type request struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []file `json:"files"`
}

type file struct {
	Content string `json:"content"`
}

// phase is one stage of the sandbox run. A non-zero Code means the stage
// failed.
type phase struct {
	Code   int    `json:"code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
}

// response is the wire format of an execute result. A missing Run together
// with a top-level Message indicates a request-level error (for example an
// unsupported language/version pair).
type response struct {
	Message string `json:"message"`
	Compile *phase `json:"compile"`
	Run     *phase `json:"run"`
}

// RequestError is a request-level rejection by the execution API.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("piston: request rejected: %s", e.Message)
}

// Client calls the execution API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. An empty baseURL selects the public endpoint.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Run executes code under the given runtime and maps the sandbox phases onto
// a RunResult. Compile and runtime failures are results, not errors; only
// transport problems and request-level rejections surface as errors.
func (c *Client) Run(ctx context.Context, language, version, code string) (*domain.RunResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"language": language, "version": version})

	body, err := json.Marshal(request{
		Language: language,
		Version:  version,
		Files:    []file{{Content: code}},
	})
	if err != nil {
		return nil, fmt.Errorf("piston: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("piston: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piston: execute call failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("piston: decode response: %w", err)
	}

	if decoded.Run == nil {
		if decoded.Message != "" {
			logCtx.WithField("message", decoded.Message).Warn("Execution API rejected request")
			return nil, &RequestError{Message: decoded.Message}
		}
		return nil, fmt.Errorf("piston: response missing run phase")
	}

	if decoded.Compile != nil && decoded.Compile.Code != 0 {
		stderr := decoded.Compile.Stderr
		if stderr == "" {
			stderr = decoded.Compile.Output
		}
		return &domain.RunResult{Status: domain.RunCompileError, Stderr: stderr}, nil
	}

	if decoded.Run.Code != 0 {
		stderr := decoded.Run.Stderr
		if stderr == "" {
			stderr = decoded.Run.Output
		}
		return &domain.RunResult{Status: domain.RunRuntimeError, Stderr: stderr}, nil
	}

	return &domain.RunResult{Status: domain.RunSuccess, Stdout: decoded.Run.Output}, nil
}
