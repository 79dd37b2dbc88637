package listing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientFetch(t *testing.T) {
	const body = `[{"name":"Discord_255.0.ipa","size":99742540,"url":"./Discord_255.0.ipa","mod_time":"2024-11-19T05:12:40.190413201Z","mode":420,"is_dir":false,"is_symlink":false}]`

	var gotPath, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	items, raw, err := client.Fetch(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("failed to fetch listing: %v", err)
	}

	if gotPath != "/stable/" {
		t.Errorf("expected request path /stable/, got %s", gotPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("expected Accept: application/json, got %q", gotAccept)
	}
	if len(items) != 1 || items[0].Name != "Discord_255.0.ipa" {
		t.Errorf("unexpected items: %+v", items)
	}
	if string(raw) != body {
		t.Error("raw payload should be returned byte-identical")
	}
}

func TestClientFetchNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, _, err := client.Fetch(context.Background(), ChannelStable); err == nil {
		t.Error("expected an error for a non-2xx response")
	}
}

func TestClientFetchUnparsableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, _, err := client.Fetch(context.Background(), ChannelTestflight); err == nil {
		t.Error("expected an error for an unparsable body")
	}
}
