package protocol

import (
	"encoding/json"
	"net/http"
)

// Distserve context ceiling: requests whose input+output would exceed this
// many tokens are truncated to a fixed 3900/49 split rather than rejected,
// matching the disaggregated-serving deployment's fixed context window.
const (
	distserveContextCeiling = 3950
	distserveTruncatedInput  = 3900
	distserveTruncatedOutput = 49
)

// Distserve is the disaggregated prefill/decode serving body shape.
type Distserve struct{}

func (Distserve) Name() string { return "distserve" }

type distserveRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

// TruncateLengths applies the 3950-token ceiling: entries that would
// exceed it are rewritten to a fixed 3900-input/49-output split. Called by
// the scheduler before the prompt is materialized, so BuildBody always
// receives an already-conforming prompt.
func TruncateLengths(inputLength, outputLength uint32) (uint32, uint32) {
	if inputLength+outputLength > distserveContextCeiling {
		return distserveTruncatedInput, distserveTruncatedOutput
	}
	return inputLength, outputLength
}

func (Distserve) BuildBody(prompt string, inputLength, outputLength uint32) ([]byte, error) {
	_, outputLength = TruncateLengths(inputLength, outputLength)
	return json.Marshal(distserveRequest{
		Prompt:    prompt,
		MaxTokens: int(outputLength),
	})
}

func (Distserve) ParseResponse(resp *http.Response) (Record, error) {
	rec := Record{}
	parseTimingHeaders(resp, rec)
	return rec, nil
}
