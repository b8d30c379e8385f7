package transport

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPClient(t *testing.T) {
	plain := NewHTTPClient(false, 5*time.Second)
	if plain.Transport != nil {
		t.Errorf("plain client Transport = %T, want default", plain.Transport)
	}
	if plain.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", plain.Timeout)
	}

	chrome := NewHTTPClient(true, 5*time.Second)
	if _, ok := chrome.Transport.(*chromeTransport); !ok {
		t.Errorf("chrome client Transport = %T, want *chromeTransport", chrome.Transport)
	}
}

func TestChromeTransportPlainHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write([]byte(r.Method + " " + string(body)))
	}))
	defer server.Close()

	client := NewHTTPClient(true, 5*time.Second)
	resp, err := client.Post(server.URL, "application/json", strings.NewReader(`{"pid":"P1"}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	defer resp.Body.Close()

	got, _ := io.ReadAll(resp.Body)
	if string(got) != `POST {"pid":"P1"}` {
		t.Errorf("body = %q", got)
	}
}

func TestRewind(t *testing.T) {
	t.Run("no body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
		got, err := rewind(req)
		if err != nil {
			t.Fatalf("rewind() error = %v", err)
		}
		if got != req {
			t.Error("request without body should be reused as is")
		}
	})

	t.Run("replayable body", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "https://example.com/", bytes.NewReader([]byte("payload")))
		io.ReadAll(req.Body)

		got, err := rewind(req)
		if err != nil {
			t.Fatalf("rewind() error = %v", err)
		}
		body, _ := io.ReadAll(got.Body)
		if string(body) != "payload" {
			t.Errorf("rewound body = %q, want payload", body)
		}
	})

	t.Run("one-shot body", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "https://example.com/", io.NopCloser(strings.NewReader("x")))
		if _, err := rewind(req); err == nil {
			t.Error("rewind() of a one-shot body should fail")
		}
	})
}
