// Package execute calls the code-execution collaborator. The collaborator is
// a remote sandbox with a piston-shaped API: language + source in, compile
// and run stages out. A failed call must never crash the caller, so transport
// errors come back as a synthetic Result instead of a Go error.
package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Stage is one phase of a sandbox run.
type Stage struct {
	Code   int    `json:"code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
}

// Result is the structured outcome of an execution request. Compile is only
// present for compiled languages.
type Result struct {
	Compile *Stage `json:"compile,omitempty"`
	Run     *Stage `json:"run,omitempty"`
	// Err is set when the call itself failed (network, bad response). The
	// sandbox was never reached or never answered usefully.
	Err string `json:"error,omitempty"`
}

// Failure builds the synthetic result for a failed call.
func Failure(reason string) Result {
	return Result{Err: reason, Run: &Stage{Stderr: reason}}
}

// Rendered applies the display rule: compile diagnostics when compilation
// failed, otherwise stdout, falling back to stderr, falling back to a generic
// placeholder.
func (r Result) Rendered() string {
	if r.Err != "" {
		return fmt.Sprintf("Execution failed: %s", r.Err)
	}
	if r.Compile != nil && r.Compile.Code != 0 {
		if r.Compile.Stderr != "" {
			return r.Compile.Stderr
		}
		return r.Compile.Output
	}
	if r.Run != nil {
		if r.Run.Stdout != "" {
			return r.Run.Stdout
		}
		if r.Run.Stderr != "" {
			return r.Run.Stderr
		}
	}
	return "Program executed with no output."
}

// Client talks to the execution endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a client for the given endpoint URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []executeFile `json:"files"`
}

type executeFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Run submits source for execution and returns the structured result. All
// failure modes fold into a synthetic Result; the method never returns an
// error.
func (c *Client) Run(ctx context.Context, language, source, version string) Result {
	body, err := json.Marshal(executeRequest{
		Language: language,
		Version:  version,
		Files:    []executeFile{{Name: "main", Content: source}},
	})
	if err != nil {
		return Failure(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Failure(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Execute] Request failed: %v", err)
		return Failure(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Failure(fmt.Sprintf("execution service returned status %d", resp.StatusCode))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Failure(fmt.Sprintf("invalid execution response: %v", err))
	}
	return result
}
