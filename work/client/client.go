package client

import (
	"net/http"
	"time"

	"station-recorder/work/config"
)

// StreamClient wraps http.Client with the header discipline every outbound
// request needs: a stable User-Agent and optional Origin/Referer, since some
// station providers reject anonymous or browserless clients. The transport is
// tuned for long-lived streaming bodies - there is no overall request timeout,
// only a response header timeout, because a healthy legacy capture holds one
// response body open for hours.
type StreamClient struct {
	Client *http.Client
	config *config.Config
}

// NewStreamClient builds a StreamClient from the application configuration.
func NewStreamClient(cfg *config.Config) *StreamClient {
	c := &http.Client{
		Timeout: 0, // no overall timeout, bodies stream indefinitely
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			DisableKeepAlives:     false,
		},
	}

	return &StreamClient{
		Client: c,
		config: cfg,
	}
}

// Do sets the standard headers and executes the request.
func (sc *StreamClient) Do(req *http.Request) (*http.Response, error) {
	sc.setHeaders(req)
	return sc.Client.Do(req)
}

func (sc *StreamClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", sc.config.UserAgent)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Accept", "*/*")

	if sc.config.ReqOrigin != "" {
		req.Header.Set("Origin", sc.config.ReqOrigin)
	}
	if sc.config.ReqReferrer != "" {
		req.Header.Set("Referer", sc.config.ReqReferrer)
	}
}
