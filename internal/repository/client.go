package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// Client fetches YAML indexes and files from a remote repository laid out
// like the bottlesdevs components and dependencies repositories.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        hclog.Logger
}

// NewClient creates a repository client rooted at baseURL.
func NewClient(baseURL string, log hclog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		log:        log.Named("repository"),
	}
}

// BaseURL returns the repository root.
func (c *Client) BaseURL() string { return c.baseURL }

// GetYAML fetches path (relative to the base URL) and decodes it into out.
func (c *Client) GetYAML(ctx context.Context, path string, out interface{}) error {
	body, err := c.get(ctx, c.baseURL+"/"+strings.TrimPrefix(path, "/"))
	if err != nil {
		return err
	}
	defer body.Close()

	if err := yaml.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// Download stores url at dest. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, err
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("downloading %s: %w", url, err)
	}

	c.log.Info("downloaded", "url", url, "size", humanize.Bytes(uint64(n)))
	return n, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: HTTP %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}
