package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "abc", "link": "http://localhost:3000/download/abc"})
	})
	mux.HandleFunc("GET /files/abc", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"files": []map[string]any{
			{"id": "0", "name": "a.txt", "size": 2048, "contentType": "text/plain"},
		}})
	})
	mux.HandleFunc("POST /send-email", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "Failed to send email"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCommand(context.Background(), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUploadCommand(t *testing.T) {
	srv := fakeAPI(t)
	p := t.TempDir() + "/a.txt"
	require.NoError(t, writeFile(p, "hi"))

	out, err := run(t, "--server", srv.URL, "upload", p)
	require.NoError(t, err)
	assert.Contains(t, out, "Upload ID: abc")
	assert.Contains(t, out, "Link: http://localhost:3000/download/abc")
}

func TestListCommand(t *testing.T) {
	srv := fakeAPI(t)

	out, err := run(t, "-s", srv.URL, "list", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "2.0 kB")
}

func TestSendEmailCommandFailure(t *testing.T) {
	srv := fakeAPI(t)

	_, err := run(t, "-s", srv.URL, "send-email", "friend@example.com", "http://x/download/abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to send email")
}

func TestDownloadCommandRejectsBadIndex(t *testing.T) {
	_, err := run(t, "download", "abc", "first")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid index")
}

func writeFile(p, content string) error {
	return os.WriteFile(p, []byte(content), 0o644)
}
