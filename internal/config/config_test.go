package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLLM(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.Model = "gemini-2.5-flash-lite"

	err := cfg.ValidateLLM()
	assert.ErrorContains(t, err, "GEMINI_API_KEY")

	cfg.LLM.APIKey = "key"
	cfg.LLM.Model = ""
	err = cfg.ValidateLLM()
	assert.ErrorContains(t, err, "llm.model")

	cfg.LLM.Model = "gemini-2.5-flash-lite"
	assert.NoError(t, cfg.ValidateLLM())
}
