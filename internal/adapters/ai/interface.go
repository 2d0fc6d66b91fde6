package ai

import (
	"context"
	"strings"

	"dcaadvisor/pkg/errors"
)

// Provider defines the metadata every AI backend exposes.
type Provider interface {
	Name() string

	// DefaultModel is used when a request names no model.
	DefaultModel() string

	// ListModels returns the models the backend is known to serve.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// SupportsTools reports native tool/function calling.
	SupportsTools() bool
}

// ModelInfo describes a model served by a provider.
type ModelInfo struct {
	Provider      string `json:"provider"`
	Name          string `json:"name"`
	Family        string `json:"family,omitempty"`
	MaxTokens     int    `json:"max_tokens,omitempty"`
	SupportsTools bool   `json:"supports_tools"`
}

// findModel looks a model up case-insensitively.
func findModel(models []ModelInfo, name string) (ModelInfo, error) {
	for _, m := range models {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "model %s", name)
}
