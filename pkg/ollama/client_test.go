package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not a url"); err == nil {
		t.Error("Expected error for URL without scheme and host")
	}
}

func TestQuery(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"{\"level\":5}"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	answer, err := c.Query(context.Background(), "m", "grade", "AQID", "image/jpeg")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer != `{"level":5}` {
		t.Errorf("Unexpected answer %q", answer)
	}
	if got["format"] != "json" {
		t.Errorf("Expected json format in request, got %v", got["format"])
	}
}

func TestQueryBadBase64(t *testing.T) {
	c, _ := NewClient("http://127.0.0.1:1")
	if _, err := c.Query(context.Background(), "m", "p", "%%%", "image/jpeg"); err == nil {
		t.Error("Expected base64 error")
	}
}
