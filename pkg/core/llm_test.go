package core

import (
	"context"
	"testing"
	"time"
)

// staticLLM is a minimal LLM returning a fixed response.
type staticLLM struct {
	*BaseLLM
	content string
}

func (s *staticLLM) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*LLMResponse, error) {
	return &LLMResponse{Content: s.content}, nil
}

func (s *staticLLM) GenerateWithJSON(ctx context.Context, prompt string, options ...GenerateOption) (map[string]interface{}, error) {
	return map[string]interface{}{"content": s.content}, nil
}

func TestGenerateOptions(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		opts := NewGenerateOptions()
		if opts.MaxTokens != 8192 {
			t.Errorf("Expected default MaxTokens 8192, got %d", opts.MaxTokens)
		}
		if opts.Temperature != 0.5 {
			t.Errorf("Expected default Temperature 0.5, got %f", opts.Temperature)
		}
	})

	t.Run("Options apply", func(t *testing.T) {
		opts := NewGenerateOptions()
		for _, opt := range []GenerateOption{
			WithMaxTokens(1024),
			WithTemperature(0.9),
			WithTopP(0.95),
			WithStopSequences("END", "STOP"),
		} {
			opt(opts)
		}

		if opts.MaxTokens != 1024 {
			t.Errorf("Expected MaxTokens 1024, got %d", opts.MaxTokens)
		}
		if opts.Temperature != 0.9 {
			t.Errorf("Expected Temperature 0.9, got %f", opts.Temperature)
		}
		if opts.TopP != 0.95 {
			t.Errorf("Expected TopP 0.95, got %f", opts.TopP)
		}
		if len(opts.Stop) != 2 || opts.Stop[0] != "END" {
			t.Errorf("Unexpected stop sequences: %v", opts.Stop)
		}
	})
}

func TestBaseLLM(t *testing.T) {
	caps := []Capability{CapabilityCompletion, CapabilityChat, CapabilityJSON}
	base := NewBaseLLM("anthropic", ModelAnthropicSonnet, caps, nil)

	if base.ProviderName() != "anthropic" {
		t.Errorf("Expected provider anthropic, got %s", base.ProviderName())
	}
	if base.ModelID() != string(ModelAnthropicSonnet) {
		t.Errorf("Unexpected model ID: %s", base.ModelID())
	}
	if len(base.Capabilities()) != 3 {
		t.Errorf("Expected 3 capabilities, got %d", len(base.Capabilities()))
	}
	if base.GetHTTPClient() == nil {
		t.Error("Expected a default HTTP client")
	}
	if base.GetHTTPClient().Timeout != 30*time.Second {
		t.Errorf("Expected 30s default timeout, got %v", base.GetHTTPClient().Timeout)
	}
}

func TestBaseLLMEndpointTimeout(t *testing.T) {
	endpoint := &EndpointConfig{BaseURL: "http://localhost:8080", TimeoutSec: 5}
	base := NewBaseLLM("openai", ModelOpenAIGPT4oMini, nil, endpoint)

	if base.GetHTTPClient().Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout from endpoint config, got %v", base.GetHTTPClient().Timeout)
	}
	if base.GetEndpointConfig() != endpoint {
		t.Error("Expected endpoint config to round-trip")
	}
}

func TestValidateEndpointConfig(t *testing.T) {
	if err := ValidateEndpointConfig(nil); err != nil {
		t.Errorf("Expected nil config to be valid, got %v", err)
	}

	if err := ValidateEndpointConfig(&EndpointConfig{}); err == nil {
		t.Error("Expected error for missing base URL")
	}

	cfg := &EndpointConfig{BaseURL: "http://localhost:8080"}
	if err := ValidateEndpointConfig(cfg); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
	if cfg.TimeoutSec != 30 {
		t.Errorf("Expected default timeout 30, got %d", cfg.TimeoutSec)
	}
}

func TestSupportedModels(t *testing.T) {
	models := SupportedModels()
	if len(models) == 0 {
		t.Fatal("Expected at least one supported model")
	}

	seen := make(map[ModelID]bool)
	for _, m := range models {
		seen[m] = true
	}
	if !seen[ModelAnthropicSonnet] {
		t.Error("Expected anthropic sonnet in supported models")
	}
	if !seen[ModelGoogleGeminiFlash] {
		t.Error("Expected gemini flash in supported models")
	}
}

func TestGlobalLLMConfig(t *testing.T) {
	t.Cleanup(func() {
		GlobalConfig.DefaultLLM = nil
		GlobalConfig.JudgeLLM = nil
		SetConcurrencyOptions(1)
	})

	t.Run("Judge falls back to default", func(t *testing.T) {
		base := NewBaseLLM("anthropic", ModelAnthropicSonnet, nil, nil)
		llm := &staticLLM{BaseLLM: base}
		SetDefaultLLM(llm)
		SetJudgeLLM(nil)

		if GetJudgeLLM() != LLM(llm) {
			t.Error("Expected judge LLM to fall back to default")
		}
	})

	t.Run("Concurrency floor", func(t *testing.T) {
		SetConcurrencyOptions(8)
		if GlobalConfig.ConcurrencyLevel != 8 {
			t.Errorf("Expected concurrency 8, got %d", GlobalConfig.ConcurrencyLevel)
		}
		SetConcurrencyOptions(-1)
		if GlobalConfig.ConcurrencyLevel != 1 {
			t.Errorf("Expected concurrency reset to 1, got %d", GlobalConfig.ConcurrencyLevel)
		}
	})
}
