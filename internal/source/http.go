package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

// HTTP reads documents with GET requests below a base URL. Every request
// carries a t=<unix-ms> query parameter so intermediate caches never
// serve a stale snapshot.
type HTTP struct {
	base   *url.URL
	client *http.Client
	now    func() time.Time
}

// NewHTTP parses base and returns an HTTP source.
func NewHTTP(base string, opts Options) (*HTTP, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, errors.WrapWithCode(err, errors.ErrSource,
			fmt.Sprintf("Invalid source URL %q", base),
			"Use a URL such as http://dashboard.example.com/board")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &HTTP{base: u, client: client, now: now}, nil
}

// URL returns the request URL for name, including the cache-busting parameter.
func (h *HTTP) URL(name string) string {
	u := *h.base
	u.Path = path.Join("/", h.base.Path, name)
	u.RawPath = ""

	q := u.Query()
	q.Set("t", strconv.FormatInt(h.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// Read implements Source.
func (h *HTTP) Read(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	target := h.URL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Couldn't build request for %s", name), "")
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Couldn't fetch %s", name),
			"Check that the dashboard host is reachable.")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.New(errors.ErrFetch,
			fmt.Sprintf("Fetching %s returned %s", name, resp.Status),
			statusSuggestion(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Couldn't read response for %s", name), "")
	}
	return body, nil
}

// String returns the base URL.
func (h *HTTP) String() string {
	return strings.TrimRight(h.base.String(), "/")
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func statusSuggestion(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "The agent may not have written this file yet."
	case code >= 500:
		return "The web server failed; it will be retried on the next tick."
	}
	return ""
}
