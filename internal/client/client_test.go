package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PaulBabatuyi/WeShare/internal/client"
	"github.com/PaulBabatuyi/WeShare/internal/database"
	"github.com/PaulBabatuyi/WeShare/internal/server"
	"github.com/PaulBabatuyi/WeShare/internal/service"
	"github.com/PaulBabatuyi/WeShare/internal/storage"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubNotifier struct {
	err  error
	sent []string
}

func (s *stubNotifier) SendLinkEmail(ctx context.Context, recipient, link string) error {
	s.sent = append(s.sent, recipient+" "+link)
	return s.err
}

type byteCounter struct{ n atomic.Int64 }

func (b *byteCounter) Write(p []byte) (int, error) {
	b.n.Add(int64(len(p)))
	return len(p), nil
}

func setupAPI(t *testing.T) (*client.Client, *stubNotifier) {
	t.Helper()

	fs := afero.NewMemMapFs()
	blobs, err := storage.NewFilesystemStorage(fs, "/uploads")
	require.NoError(t, err)
	manifests, err := database.NewDiskStore(fs, "/manifests")
	require.NoError(t, err)

	notifier := &stubNotifier{}
	h := server.NewHandlers(server.HandlersConfig{
		Uploads:  service.NewUploadService(blobs, manifests, "http://share.local"),
		Notifier: notifier,
		Logger:   zap.NewNop(),
	})
	srv := httptest.NewServer(server.NewRouter(h, server.RouterConfig{Logger: zap.NewNop()}))
	t.Cleanup(srv.Close)

	return client.New(srv.URL, srv.Client()), notifier
}

func TestUploadListDownload(t *testing.T) {
	c, _ := setupAPI(t)
	ctx := context.Background()

	progress := &byteCounter{}
	res, err := c.Upload(ctx, []client.File{
		{Name: "a.txt", Content: strings.NewReader("alpha")},
		{Name: "dir/Grüße.md", Content: strings.NewReader("# hi")},
	}, progress)
	require.NoError(t, err)
	assert.Equal(t, "http://share.local/download/"+res.ID, res.Link)
	assert.Greater(t, progress.n.Load(), int64(len("alpha")+len("# hi")))

	files, err := c.List(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, "dir/Grüße.md", files[1].Name)

	out := afero.NewMemMapFs()
	require.NoError(t, out.MkdirAll("/downloads", 0o755))

	p, err := c.Download(ctx, out, res.ID, 1, "/downloads", nil)
	require.NoError(t, err)
	assert.Equal(t, "/downloads/Grüße.md", p)

	data, err := afero.ReadFile(out, p)
	require.NoError(t, err)
	assert.Equal(t, "# hi", string(data))

	exists, err := afero.Exists(out, p+".tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNotFound(t *testing.T) {
	c, _ := setupAPI(t)
	ctx := context.Background()

	_, err := c.List(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrNotFound))

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Upload not found", apiErr.Message)

	_, err = c.Download(ctx, afero.NewMemMapFs(), uuid.NewString(), 0, "/", nil)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestUploadNothing(t *testing.T) {
	c, _ := setupAPI(t)

	_, err := c.Upload(context.Background(), nil, nil)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "No files uploaded", apiErr.Message)
}

func TestSendEmail(t *testing.T) {
	c, notifier := setupAPI(t)
	ctx := context.Background()

	require.NoError(t, c.SendEmail(ctx, "friend@example.com", "http://share.local/download/x"))
	assert.Equal(t, []string{"friend@example.com http://share.local/download/x"}, notifier.sent)

	notifier.err = errors.New("smtp down")
	err := c.SendEmail(ctx, "friend@example.com", "http://share.local/download/x")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Failed to send email", apiErr.Message)
}

func TestDownloadNameFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename=".."`)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	p, err := client.New(srv.URL, nil).Download(context.Background(), fs, "x", 3, "/out", nil)
	require.NoError(t, err)
	assert.Equal(t, "/out/file-3", p)
}
