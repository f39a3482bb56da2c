package protocol

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func makeResponse(t *testing.T, headers map[string]string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	for k, v := range headers {
		rec.Header().Set(k, v)
	}
	rec.WriteHeader(http.StatusOK)
	resp := rec.Result()
	return resp
}

func TestRegistryDefaults(t *testing.T) {
	r := NewDefaultRegistry()
	for _, name := range []string{"st", "vllm", "distserve", "mock"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("registry missing variant %q", name)
		}
	}
}

func TestSTBuildBody(t *testing.T) {
	body, err := ST{}.BuildBody("hello", 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) == 0 {
		t.Fatal("empty body")
	}
}

func TestParseResponseTimingHeadersAreSoft(t *testing.T) {
	resp := makeResponse(t, map[string]string{})
	rec, err := (ST{}).ParseResponse(resp)
	if err != nil {
		t.Fatalf("ParseResponse should never fail on missing timing headers, got %v", err)
	}
	for _, key := range []string{"first_token_time", "inference_time", "total_time"} {
		if _, ok := rec[key]; ok {
			t.Errorf("%s should be absent when header missing", key)
		}
	}
}

func TestParseResponseOptionalHeadersOmittedWhenAbsent(t *testing.T) {
	resp := makeResponse(t, map[string]string{
		"x-first-token-time": "12.5",
		"x-inference-time":   "100.0",
		"x-total-time":       "112.5",
	})
	rec, err := (VLLM{}).ParseResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rec["queue_time"]; ok {
		t.Error("queue_time should be absent when header missing")
	}
	if rec["total_time"] != "112.5" {
		t.Errorf("total_time = %q, want 112.5", rec["total_time"])
	}
}

func TestDistserveTruncateLengths(t *testing.T) {
	in, out := TruncateLengths(4000, 200)
	if in != distserveTruncatedInput || out != distserveTruncatedOutput {
		t.Fatalf("TruncateLengths = (%d, %d), want (%d, %d)", in, out, distserveTruncatedInput, distserveTruncatedOutput)
	}
	in2, out2 := TruncateLengths(100, 50)
	if in2 != 100 || out2 != 50 {
		t.Fatalf("TruncateLengths should pass through under ceiling, got (%d, %d)", in2, out2)
	}
}
