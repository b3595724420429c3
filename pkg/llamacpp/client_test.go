package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestQuery(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		body := map[string]any{}
		json.NewDecoder(r.Body).Decode(&body)
		raw, _ := json.Marshal(body)
		json.Unmarshal(raw, &got)
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"level\":6}"}}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL + "/")
	answer, err := c.Query(context.Background(), "m", "grade", "AQID", "image/png")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer != `{"level":6}` {
		t.Errorf("Unexpected answer %q", answer)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("Expected one message, got %d", len(got.Messages))
	}
	raw, _ := json.Marshal(got.Messages[0].Content)
	if !strings.Contains(string(raw), "data:image/png;base64,AQID") {
		t.Errorf("Image data URL missing from request: %s", raw)
	}
}

func TestQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.Query(context.Background(), "m", "p", "", ""); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestQueryNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.Query(context.Background(), "m", "p", "", ""); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestNewClientDefaultURL(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("Unexpected default URL %s", c.baseURL)
	}
}
