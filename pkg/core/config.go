package core

import (
	"fmt"
)

type Config struct {
	DefaultLLM       LLM
	JudgeLLM         LLM
	ConcurrencyLevel int
}

var GlobalConfig = &Config{
	// default concurrency 1
	ConcurrencyLevel: 1,
}

// LLMFactory defines a simple interface for creating LLM instances. The
// concrete factory is installed by pkg/llms so that core stays free of
// provider imports.
type LLMFactory interface {
	CreateLLM(apiKey string, modelID ModelID) (LLM, error)
}

// DefaultFactory is the global factory instance used by the configuration
// helpers below.
var DefaultFactory LLMFactory

// ConfigureDefaultLLM sets up the default LLM used by semantic operators.
func ConfigureDefaultLLM(apiKey string, modelID ModelID) error {
	if DefaultFactory == nil {
		return fmt.Errorf("no LLM factory installed")
	}
	llmInstance, err := DefaultFactory.CreateLLM(apiKey, modelID)
	if err != nil {
		return fmt.Errorf("failed to configure default LLM: %w", err)
	}
	GlobalConfig.DefaultLLM = llmInstance
	return nil
}

// ConfigureJudgeLLM sets up the LLM used for quality judging. Falls back to
// the default LLM when unset.
func ConfigureJudgeLLM(apiKey string, modelID ModelID) error {
	if DefaultFactory == nil {
		return fmt.Errorf("no LLM factory installed")
	}
	llmInstance, err := DefaultFactory.CreateLLM(apiKey, modelID)
	if err != nil {
		return fmt.Errorf("failed to configure judge LLM: %w", err)
	}
	GlobalConfig.JudgeLLM = llmInstance
	return nil
}

// GetDefaultLLM returns the default LLM.
func GetDefaultLLM() LLM {
	return GlobalConfig.DefaultLLM
}

// GetJudgeLLM returns the judge LLM, or the default LLM when no judge has
// been configured.
func GetJudgeLLM() LLM {
	if GlobalConfig.JudgeLLM != nil {
		return GlobalConfig.JudgeLLM
	}
	return GlobalConfig.DefaultLLM
}

// SetDefaultLLM sets the default LLM.
func SetDefaultLLM(llm LLM) {
	GlobalConfig.DefaultLLM = llm
}

// SetJudgeLLM sets the judge LLM.
func SetJudgeLLM(llm LLM) {
	GlobalConfig.JudgeLLM = llm
}

func SetConcurrencyOptions(level int) {
	if level > 0 {
		GlobalConfig.ConcurrencyLevel = level
	} else {
		GlobalConfig.ConcurrencyLevel = 1 // Reset to default value for invalid inputs
	}
}
