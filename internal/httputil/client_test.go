package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStandardClientSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := NewStandardClient(nil).Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got == "" || got[:6] != "globe/" {
		t.Fatalf("unexpected user agent %q", got)
	}
}

func TestMockHTTPClientQueue(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockHTTPClient().
		AddResponse(http.StatusOK, []byte("first")).
		AddErrorResponse(boom)

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)

	resp, err := m.Do(req)
	if err != nil {
		t.Fatalf("first Do: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "first" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := m.Do(req); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	resp, err = m.Do(req)
	if err != nil {
		t.Fatalf("third Do: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after queue exhausted, got %d", resp.StatusCode)
	}
	if m.RequestCount() != 3 {
		t.Fatalf("expected 3 requests, got %d", m.RequestCount())
	}
}
