package fetch

import (
	"context"
	"io"
	"net/http"

	"station-recorder/work/client"
	"station-recorder/work/config"
	"station-recorder/work/logger"
	"station-recorder/work/types"
)

// Result is the classified outcome of one GET against a playlist or stream
// URL. Body is the live response body; the caller owns it and must close it.
// FinalURL is the URL after any transport-level redirects and is the base
// every relative segment reference must be resolved against.
type Result struct {
	Status      int
	ContentType string
	FinalURL    string
	Header      http.Header
	Body        io.ReadCloser
}

// Fetcher performs single GET requests and classifies the response. It never
// retries; whether a failure ends a capture session is the caller's policy.
type Fetcher struct {
	Client *client.StreamClient
	Config *config.Config
}

// NewFetcher wires a Fetcher from the shared HTTP client and configuration.
func NewFetcher(c *client.StreamClient, cfg *config.Config) *Fetcher {
	return &Fetcher{Client: c, Config: cfg}
}

// Do performs one GET against the URL and classifies the response:
//
//   - transport failures come back as *types.NetworkError
//   - non-2xx statuses come back as *types.ProtocolError
//   - a missing Content-Type header is rejected as a protocol error, because
//     endpoints that omit it are almost always broken redirectors
//
// On success the response body is returned open for streaming reads.
func (f *Fetcher) Do(ctx context.Context, rawURL string) (*Result, error) {
	logger.Debug("{fetch - Do} GET %s", f.Config.LogURL(rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.ProtocolError{URL: rawURL, Reason: "invalid request", Err: err}
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := f.Client.Do(req)
	if err != nil {
		logger.Error("{fetch - Do} network error for %s: %v", f.Config.LogURL(rawURL), err)
		return nil, &types.NetworkError{URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		logger.Error("{fetch - Do} server error %d for %s", resp.StatusCode, f.Config.LogURL(rawURL))
		return nil, &types.ProtocolError{URL: rawURL, Reason: http.StatusText(resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		resp.Body.Close()
		logger.Error("{fetch - Do} no content-type header from %s", f.Config.LogURL(rawURL))
		return nil, &types.ProtocolError{URL: rawURL, Reason: "missing content-type", Err: types.ErrNoContentType}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Status:      resp.StatusCode,
		ContentType: contentType,
		FinalURL:    finalURL,
		Header:      resp.Header,
		Body:        resp.Body,
	}, nil
}
