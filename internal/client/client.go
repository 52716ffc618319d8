// Package client talks to the WeShare HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response with the server's {"message"} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API rooted at baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type File struct {
	Name    string
	Content io.Reader
}

type UploadResult struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

type FileInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Upload streams files as one multipart request. Request body bytes are also
// written to progress when it is non-nil.
func (c *Client) Upload(ctx context.Context, files []File, progress io.Writer) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeParts(mw, files))
	}()

	var body io.Reader = pr
	if progress != nil {
		body = io.TeeReader(pr, progress)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res UploadResult
	if err := c.do(req, &res); err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("upload: %w", err)
	}
	return &res, nil
}

func writeParts(mw *multipart.Writer, files []File) error {
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
			"name":     "files",
			"filename": f.Name,
		}))
		h.Set("Content-Type", "application/octet-stream")

		w, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, f.Content); err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	return mw.Close()
}

func (c *Client) List(ctx context.Context, id string) ([]FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var res struct {
		Files []FileInfo `json:"files"`
	}
	if err := c.do(req, &res); err != nil {
		return nil, fmt.Errorf("list %s: %w", id, err)
	}
	return res.Files, nil
}

// Download writes file index of upload id into dir, named after the
// server-provided filename. It returns the written path.
func (c *Client) Download(ctx context.Context, fs afero.Fs, id string, index int, dir string, progress io.Writer) (string, error) {
	u := c.baseURL + "/files/" + url.PathEscape(id) + "/" + strconv.Itoa(index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: %w", apiError(resp))
	}

	filePath := filepath.Join(dir, downloadName(resp.Header.Get("Content-Disposition"), index))
	tmpFilePath := filePath + ".tmp"

	out, err := fs.Create(tmpFilePath)
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}

	var body io.Reader = resp.Body
	if progress != nil {
		body = io.TeeReader(resp.Body, progress)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		fs.Remove(tmpFilePath)
		return "", fmt.Errorf("copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		fs.Remove(tmpFilePath)
		return "", err
	}

	if err := fs.Rename(tmpFilePath, filePath); err != nil {
		return "", fmt.Errorf("rename temporary file: %w", err)
	}
	return filePath, nil
}

// downloadName keeps only the final element of the advertised filename.
func downloadName(disposition string, index int) string {
	fallback := "file-" + strconv.Itoa(index)

	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return fallback
	}
	name := params["filename"]
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}

func (c *Client) SendEmail(ctx context.Context, email, link string) error {
	body, err := json.Marshal(map[string]string{"email": email, "link": link})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	e := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
	}
	if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body) == nil {
		e.Message = body.Message
	}
	return e
}
