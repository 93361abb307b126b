package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sunilgawai/pitchreel/internal/config"
)

// mediaStore implements BlobStore against the hosted media provider's HTTP
// API. Chunked uploads hit {base}/upload directly from the client with the
// signature issued here; the provider reassembles chunks that share an
// X-Unique-Upload-Id and returns the complete-object metadata on the final
// chunk.
type mediaStore struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

// NewMediaStore creates a media provider client from configuration.
func NewMediaStore(cfg config.MediaConfig) (BlobStore, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("media storage requires base_url, api_key and api_secret")
	}

	log.Printf("INFO: Media storage initialized for %s", cfg.BaseURL)

	return &mediaStore{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		client:    &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// sign produces the provider's parameter signature: the sorted key=value
// parameters joined by '&', followed by the API secret, SHA-1 hashed.
func (m *mediaStore) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + m.apiSecret))
	return hex.EncodeToString(sum[:])
}

// SignUpload issues the signature the client attaches to every chunk request.
func (m *mediaStore) SignUpload(ctx context.Context, folder, targetID string) (*UploadParams, error) {
	ts := time.Now().Unix()
	signature := m.sign(map[string]string{
		"folder":    folder,
		"public_id": targetID,
		"timestamp": fmt.Sprintf("%d", ts),
	})

	return &UploadParams{
		UploadURL: m.baseURL + "/upload",
		APIKey:    m.apiKey,
		Signature: signature,
		Timestamp: ts,
		Folder:    folder,
		TargetID:  targetID,
	}, nil
}

// destroyResponse is the provider's JSON reply to a destroy call.
type destroyResponse struct {
	Result string `json:"result"`
}

// Destroy asks the provider to delete the object. The provider reports
// "not found" for already-absent objects, which callers treat as deleted.
func (m *mediaStore) Destroy(ctx context.Context, remoteID string) (DestroyResult, error) {
	ts := time.Now().Unix()
	form := url.Values{}
	form.Set("public_id", remoteID)
	form.Set("api_key", m.apiKey)
	form.Set("timestamp", fmt.Sprintf("%d", ts))
	form.Set("signature", m.sign(map[string]string{
		"public_id": remoteID,
		"timestamp": fmt.Sprintf("%d", ts),
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/destroy", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("destroy %s: status %d: %s", remoteID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dr destroyResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return "", fmt.Errorf("destroy %s: unparsable response: %w", remoteID, err)
	}

	return DestroyResult(dr.Result), nil
}

// SignedDownloadURL builds a time-limited fetch URL for the object.
func (m *mediaStore) SignedDownloadURL(ctx context.Context, remoteID string, attachment bool) (string, error) {
	expires := time.Now().Add(DefaultSignedURLExpiry).Unix()
	params := map[string]string{
		"public_id": remoteID,
		"expires":   fmt.Sprintf("%d", expires),
	}
	if attachment {
		params["attachment"] = "true"
	}

	q := url.Values{}
	q.Set("expires", fmt.Sprintf("%d", expires))
	if attachment {
		q.Set("attachment", "true")
	}
	q.Set("signature", m.sign(params))

	return fmt.Sprintf("%s/fetch/%s?%s", m.baseURL, url.PathEscape(remoteID), q.Encode()), nil
}

// Download resolves a signed URL and fetches the object bytes. A non-success
// status is a failure, never a silent empty download.
func (m *mediaStore) Download(ctx context.Context, remoteID string) ([]byte, string, error) {
	signedURL, err := m.SignedDownloadURL(ctx, remoteID, true)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("fetch %s: status %d: %s", remoteID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}
