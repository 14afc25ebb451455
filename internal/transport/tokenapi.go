package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"
)

// tokenRefreshMargin refreshes the bearer token when less than this remains
// before its expiry, so a token never dies mid-transfer.
const tokenRefreshMargin = time.Minute

// TokenAPI uploads to an HTTP API that authenticates with OAuth-style bearer
// tokens (the SleepHQ import endpoint is the motivating target). Files are
// sent as multipart form posts.
type TokenAPI struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client

	token    string
	tokenExp time.Time

	now func() time.Time // test seam
}

// NewTokenAPI returns a client for the API at baseURL.
func NewTokenAPI(baseURL, clientID, clientSecret string) *TokenAPI {
	return &TokenAPI{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 2 * time.Minute},
		now:          time.Now,
	}
}

func (t *TokenAPI) Name() string { return "tokenapi" }

// ensureToken fetches a bearer token if none is cached or the cached one is
// about to expire. Expiry is read from the token's own exp claim without
// signature verification (the agent is the audience, not the verifier); if
// the token is not a parsable JWT a conservative 30-minute lifetime is
// assumed.
func (t *TokenAPI) ensureToken(ctx context.Context) error {
	if t.token != "" && t.now().Before(t.tokenExp.Add(-tokenRefreshMargin)) {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", t.clientID)
	form.Set("client_secret", t.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/oauth/token", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return permanentf("build token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return transientf("token request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return transientf("token request: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return permanentf("token request: status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.AccessToken == "" {
		return transientf("token response malformed")
	}

	t.token = payload.AccessToken
	t.tokenExp = t.tokenExpiry(payload.AccessToken)
	return nil
}

func (t *TokenAPI) tokenExpiry(token string) time.Time {
	fallback := t.now().Add(30 * time.Minute)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fallback
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}

// Upload posts the file as a multipart form to /uploads. 5xx and network
// failures are retried with backoff, then surfaced transient.
func (t *TokenAPI) Upload(ctx context.Context, localPath, remotePath string) (int64, time.Duration, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, 0, permanentf("read %s: %v", localPath, err)
	}

	start := time.Now()

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := t.ensureToken(ctx); err != nil {
			return err
		}
		return t.post(ctx, remotePath, data)
	})
	if err != nil {
		return 0, 0, err
	}

	return int64(len(data)), time.Since(start), nil
}

func (t *TokenAPI) post(ctx context.Context, remotePath string, data []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("path", path.Clean(remotePath)); err != nil {
		return permanentf("build form: %v", err)
	}
	part, err := form.CreateFormFile("file", path.Base(remotePath))
	if err != nil {
		return permanentf("build form: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return permanentf("build form: %v", err)
	}
	if err := form.Close(); err != nil {
		return permanentf("build form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/uploads", &body)
	if err != nil {
		return permanentf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return retry.RetryableError(transientf("post %s: %v", remotePath, err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		// Token revoked server-side; drop it so the retry fetches a new one.
		t.token = ""
		return retry.RetryableError(transientf("post %s: status 401", remotePath))
	case resp.StatusCode >= 500:
		return retry.RetryableError(transientf("post %s: status %d", remotePath, resp.StatusCode))
	default:
		return permanentf("post %s: status %d", remotePath, resp.StatusCode)
	}
}
