// Package llms provides concrete core.LLM implementations. The engine only
// consults a model from its semantic operators, the quality judge, and the
// knowledge extractor, and every one of those call sites carries a
// deterministic fallback, so running without a provider stays valid.
package llms

import (
	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	errs "github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

// NewLLM creates a new LLM instance based on the provided model ID.
func NewLLM(apiKey string, modelID core.ModelID) (core.LLM, error) {
	switch {
	case isAnthropicModel(modelID):
		return NewAnthropicLLM(apiKey, modelID)
	default:
		return nil, errs.WithFields(
			errs.New(errs.InvalidInput, "unsupported model ID"),
			errs.Fields{"model": modelID})
	}
}

func isAnthropicModel(modelID core.ModelID) bool {
	for _, m := range core.ProviderModels["anthropic"] {
		if m == modelID {
			return true
		}
	}
	return isValidAnthropicModel(string(modelID))
}

// Factory implements core.LLMFactory over the providers this package builds.
type Factory struct{}

// CreateLLM implements core.LLMFactory.
func (Factory) CreateLLM(apiKey string, modelID core.ModelID) (core.LLM, error) {
	return NewLLM(apiKey, modelID)
}

// EnsureFactory installs this package's factory as the process default used
// by core.ConfigureDefaultLLM, unless a factory is already installed.
func EnsureFactory() {
	if core.DefaultFactory == nil {
		core.DefaultFactory = Factory{}
	}
}
