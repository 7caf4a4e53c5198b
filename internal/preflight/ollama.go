package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ollamaCheckTimeout bounds each probe so a wedged server cannot hang
// the doctor command.
const ollamaCheckTimeout = 3 * time.Second

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckOllamaServer probes the Ollama endpoint. The server is optional;
// retrieval degrades to static embeddings and evidence-only answers
// without it, so a failure here is a warning.
func (c *Checker) CheckOllamaServer(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "ollama_server",
		Required: false,
	}

	_, err := c.listModels(ctx)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unreachable at %s", c.ollamaHost)
		result.Details = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("reachable at %s", c.ollamaHost)
	return result
}

// CheckModel verifies that the named model is pulled on the server.
func (c *Checker) CheckModel(ctx context.Context, name, model string) CheckResult {
	result := CheckResult{
		Name:     name,
		Required: false,
	}
	if model == "" {
		result.Status = StatusWarn
		result.Message = "no model configured"
		return result
	}

	models, err := c.listModels(ctx)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot list models: %v", err)
		return result
	}

	for _, have := range models {
		if modelMatches(have, model) {
			result.Status = StatusPass
			result.Message = fmt.Sprintf("%s available", model)
			return result
		}
	}

	result.Status = StatusWarn
	result.Message = fmt.Sprintf("%s not pulled", model)
	result.Details = fmt.Sprintf("Run 'ollama pull %s'", model)
	return result
}

func (c *Checker) listModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, ollamaCheckTimeout)
	defer cancel()

	url := strings.TrimRight(c.ollamaHost, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// modelMatches compares model names ignoring the tag suffix, so
// "llama3.1:8b" satisfies a configured "llama3.1".
func modelMatches(have, want string) bool {
	if have == want {
		return true
	}
	base := have
	if i := strings.IndexByte(have, ':'); i >= 0 {
		base = have[:i]
	}
	return base == want
}
