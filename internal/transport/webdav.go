package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// WebDAV uploads files with HTTP PUT against a WebDAV share. Remote parent
// collections are created lazily with MKCOL.
type WebDAV struct {
	baseURL  string
	user     string
	password string
	client   *http.Client

	// created caches collections known to exist so each parent is probed once.
	created map[string]bool
}

// NewWebDAV returns a client for the share at baseURL using basic auth.
func NewWebDAV(baseURL, user, password string) *WebDAV {
	return &WebDAV{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		client:   &http.Client{Timeout: 2 * time.Minute},
		created:  map[string]bool{},
	}
}

func (w *WebDAV) Name() string { return "webdav" }

// Upload PUTs the file content to baseURL/remotePath. Network failures and
// 5xx responses are retried with exponential backoff inside the call; what
// escapes is classified transient, 4xx responses permanent.
func (w *WebDAV) Upload(ctx context.Context, localPath, remotePath string) (int64, time.Duration, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, 0, permanentf("read %s: %v", localPath, err)
	}

	if err := w.ensureCollections(ctx, remotePath); err != nil {
		return 0, 0, err
	}

	start := time.Now()

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return w.put(ctx, remotePath, data)
	})
	if err != nil {
		return 0, 0, err
	}

	return int64(len(data)), time.Since(start), nil
}

func (w *WebDAV) put(ctx context.Context, remotePath string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, w.remoteURL(remotePath), bytes.NewReader(data))
	if err != nil {
		return permanentf("build request for %s", remotePath)
	}
	req.SetBasicAuth(w.user, w.password)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := w.client.Do(req)
	if err != nil {
		return retry.RetryableError(transientf("put %s: %v", remotePath, err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return w.classify(resp.StatusCode, "put", remotePath)
}

// ensureCollections issues MKCOL for each missing parent of remotePath.
// 405 means the collection already exists.
func (w *WebDAV) ensureCollections(ctx context.Context, remotePath string) error {
	dir := path.Dir(remotePath)
	if dir == "." || dir == "/" {
		return nil
	}

	var prefix string
	for _, segment := range strings.Split(dir, "/") {
		if segment == "" {
			continue
		}
		prefix = path.Join(prefix, segment)
		if w.created[prefix] {
			continue
		}

		req, err := http.NewRequestWithContext(ctx, "MKCOL", w.remoteURL(prefix)+"/", nil)
		if err != nil {
			return permanentf("build mkcol for %s", prefix)
		}
		req.SetBasicAuth(w.user, w.password)

		resp, err := w.client.Do(req)
		if err != nil {
			return transientf("mkcol %s: %v", prefix, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusMethodNotAllowed {
			if err := w.classify(resp.StatusCode, "mkcol", prefix); err != nil {
				return err
			}
		}
		w.created[prefix] = true
	}
	return nil
}

func (w *WebDAV) remoteURL(remotePath string) string {
	escaped := make([]string, 0, 4)
	for _, segment := range strings.Split(remotePath, "/") {
		if segment == "" {
			continue
		}
		escaped = append(escaped, url.PathEscape(segment))
	}
	return w.baseURL + "/" + strings.Join(escaped, "/")
}

func (w *WebDAV) classify(status int, op, remotePath string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 500:
		return retry.RetryableError(transientf("%s %s: status %d", op, remotePath, status))
	default:
		return permanentf("%s %s: status %d", op, remotePath, status)
	}
}
