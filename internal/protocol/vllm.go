package protocol

import (
	"encoding/json"
	"net/http"
)

// VLLM is vLLM's OpenAI-completions-style body shape.
type VLLM struct{}

func (VLLM) Name() string { return "vllm" }

type vllmRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

func (VLLM) BuildBody(prompt string, _, outputLength uint32) ([]byte, error) {
	return json.Marshal(vllmRequest{
		Prompt:      prompt,
		MaxTokens:   int(outputLength),
		Temperature: 0.0,
		Stream:      false,
	})
}

func (VLLM) ParseResponse(resp *http.Response) (Record, error) {
	rec := Record{}
	parseTimingHeaders(resp, rec)
	return rec, nil
}
