package protocol

import (
	"encoding/json"
	"net/http"
)

// ST is the ST/TGI-like text-generation-inference body shape.
type ST struct{}

func (ST) Name() string { return "st" }

type stParameters struct {
	MaxNewTokens int  `json:"max_new_tokens"`
	DoSample     bool `json:"do_sample"`
}

type stRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters stParameters `json:"parameters"`
}

func (ST) BuildBody(prompt string, _, outputLength uint32) ([]byte, error) {
	return json.Marshal(stRequest{
		Inputs: prompt,
		Parameters: stParameters{
			MaxNewTokens: int(outputLength),
			DoSample:     false,
		},
	})
}

func (ST) ParseResponse(resp *http.Response) (Record, error) {
	rec := Record{}
	parseTimingHeaders(resp, rec)
	return rec, nil
}
