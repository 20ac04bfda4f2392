package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIExtractFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q, want bearer token", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req["model"] != "gpt-4o" {
			t.Errorf("model = %v, want gpt-4o", req["model"])
		}
		rf, _ := req["response_format"].(map[string]any)
		if rf["type"] != "json_object" {
			t.Errorf("response_format = %v, want json_object", rf)
		}

		content := `{"claimNumber":"C-100","claimAmount":4000,"completeness":90,"fraudScore":10,"policyStatus":"active"}`
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("NewOpenAIClient() failed: %v", err)
	}

	fields, err := client.ExtractFields(context.Background(), "CLAIM # C-100 ...", "claim.pdf")
	if err != nil {
		t.Fatalf("ExtractFields() failed: %v", err)
	}

	if num, ok := fields.ClaimNumber(); !ok || num != "C-100" {
		t.Errorf("claimNumber = %v, want C-100", fields["claimNumber"])
	}
	if fields["claimAmount"] != 4000.0 {
		t.Errorf("claimAmount = %v, want 4000", fields["claimAmount"])
	}
	if fields["policyStatus"] != "active" {
		t.Errorf("policyStatus = %v, want active", fields["policyStatus"])
	}
}

func TestOpenAIExtractFieldsInvalidModelJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "not json at all"}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("NewOpenAIClient() failed: %v", err)
	}

	if _, err := client.ExtractFields(context.Background(), "text", "doc"); err == nil {
		t.Fatal("ExtractFields() should fail when the model returns non-JSON")
	}
}

func TestOpenAIExtractFieldsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("NewOpenAIClient() failed: %v", err)
	}

	_, err = client.ExtractFields(context.Background(), "text", "doc")
	if err == nil {
		t.Fatal("ExtractFields() should surface API errors")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func TestOpenAIExtractFieldsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("NewOpenAIClient() failed: %v", err)
	}

	if _, err := client.ExtractFields(context.Background(), "text", "doc"); err == nil {
		t.Fatal("ExtractFields() should fail on an empty choices list")
	}
}

func TestNewOpenAIClientValidatesConfig(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}, nil); err == nil {
		t.Error("missing api key should be rejected")
	}
}
