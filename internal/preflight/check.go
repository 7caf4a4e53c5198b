package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the status as its string form.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs environment validation before indexing or querying.
type Checker struct {
	offline        bool
	ollamaHost     string
	embedModel     string
	generatorModel string
}

// Option configures a Checker.
type Option func(*Checker)

// WithOffline skips the Ollama checks. Static embeddings need no server.
func WithOffline(offline bool) Option {
	return func(c *Checker) {
		c.offline = offline
	}
}

// WithOllama sets the Ollama endpoint and the models to look for.
func WithOllama(host, embedModel, generatorModel string) Option {
	return func(c *Checker) {
		c.ollamaHost = host
		c.embedModel = embedModel
		c.generatorModel = generatorModel
	}
}

// New creates a Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every preflight check against the project directory.
func (c *Checker) RunAll(ctx context.Context, projectPath string) []CheckResult {
	results := []CheckResult{
		c.CheckDiskSpace(projectPath),
		c.CheckWritePermissions(projectPath),
		c.CheckFileDescriptors(),
	}

	if !c.offline && c.ollamaHost != "" {
		server := c.CheckOllamaServer(ctx)
		results = append(results, server)
		// Model listings only make sense when the server answered.
		if server.Status == StatusPass {
			results = append(results,
				c.CheckModel(ctx, "embed_model", c.embedModel),
				c.CheckModel(ctx, "generator_model", c.generatorModel),
			)
		}
	}

	return results
}

// LocalChecks runs only the checks that never touch the network. The
// index command uses these so offline indexing stays offline.
func (c *Checker) LocalChecks(projectPath string) []CheckResult {
	return []CheckResult{
		c.CheckDiskSpace(projectPath),
		c.CheckWritePermissions(projectPath),
		c.CheckFileDescriptors(),
	}
}

// HasCriticalFailures returns true if any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus collapses the results into ready, ready_with_warnings,
// or failed.
func SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckWritePermissions verifies the project directory accepts writes.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	testFile := filepath.Join(path, ".itihasa-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}
