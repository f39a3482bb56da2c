package protocol

import (
	"encoding/json"
	"net/http"
)

// Mock is the in-process test double's body shape, used against
// internal/mockserver both for the mock protocol and for e2e tests.
type Mock struct{}

func (Mock) Name() string { return "mock" }

type mockRequest struct {
	InputLength  uint32 `json:"input_length"`
	OutputLength uint32 `json:"output_length"`
}

func (Mock) BuildBody(_ string, inputLength, outputLength uint32) ([]byte, error) {
	return json.Marshal(mockRequest{InputLength: inputLength, OutputLength: outputLength})
}

func (Mock) ParseResponse(resp *http.Response) (Record, error) {
	rec := Record{}
	parseTimingHeaders(resp, rec)
	return rec, nil
}
