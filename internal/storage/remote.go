package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tsuji/bunkei/internal/logger"
)

// Remote stores snapshots in an external key-value service over HTTP.
// A key maps to {base}/kv/{key}; GET 404 means the key was never saved.
type Remote struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logger.Logger
}

var _ Store = (*Remote)(nil)

func NewRemote(baseURL, token string) *Remote {
	return &Remote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logger.Default().WithPrefix("remotekv"),
	}
}

func (r *Remote) Load(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.keyURL(key), nil)
	if err != nil {
		return nil, err
	}
	r.authorize(req)

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.Error("failed to fetch key %q: %v", key, err)
		return nil, fmt.Errorf("remote load %q: %w", key, err)
	}
	defer resp.Body.Close()
	r.log.Debug("load response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		r.log.Error("load failed: key=%q status=%d body=%s", key, resp.StatusCode, string(body))
		return nil, fmt.Errorf("remote load %q: status %d", key, resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote load %q: read body: %w", key, err)
	}
	return blob, nil
}

func (r *Remote) Save(ctx context.Context, key string, blob []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.keyURL(key), bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	r.authorize(req)

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.Error("failed to store key %q: %v", key, err)
		return fmt.Errorf("remote save %q: %w", key, err)
	}
	defer resp.Body.Close()
	r.log.Debug("save response received in %v, status=%d", time.Since(start), resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		r.log.Error("save failed: key=%q status=%d body=%s", key, resp.StatusCode, string(body))
		return fmt.Errorf("remote save %q: status %d", key, resp.StatusCode)
	}
}

func (r *Remote) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}

func (r *Remote) keyURL(key string) string {
	return r.baseURL + "/kv/" + url.PathEscape(key)
}

func (r *Remote) authorize(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
}
