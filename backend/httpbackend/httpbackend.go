// Package httpbackend implements a resolution backend that lives out of
// process, behind an HTTP endpoint.
//
// The backend is sent a JSON request
//
//	POST /resolve
//	{"url": "https://share.example/s/1abc"}
//
// and may answer with any JSON document (an object, a string or a list) or
// with a bare link as text/plain. Whatever it returns is handed to
// directlink.Normalize unchanged.
package httpbackend

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/mccutchen/directlink"
	"github.com/mccutchen/directlink/bufferpool"
)

// StrategyName identifies this backend in detection results.
const StrategyName = "http"

const maxBodySize = 1 << 20 // 1 MiB is far more than any link payload

var buffers = bufferpool.New()

// ErrResponseTooLarge is returned instead of decoding a partial body.
var ErrResponseTooLarge = errors.New("resolver backend response exceeds 1 MiB")

// Client talks to an HTTP resolution backend.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

var _ directlink.DirectLinker = &Client{} // Client implements directlink.DirectLinker

// New creates a Client for the given endpoint.
func New(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// Strategy returns a directlink.Strategy that acquires a Client for
// endpoint, or reports directlink.ErrMissing if endpoint is empty.
func Strategy(endpoint string, httpClient *http.Client) directlink.Strategy {
	return directlink.Strategy{
		Name: StrategyName,
		Acquire: func(ctx context.Context) (any, error) {
			if endpoint == "" {
				return nil, fmt.Errorf("no endpoint configured: %w", directlink.ErrMissing)
			}
			return New(endpoint, httpClient), nil
		},
	}
}

// GetDownloadLink asks the backend to resolve shareURL.
func (c *Client) GetDownloadLink(ctx context.Context, shareURL string) (directlink.Value, error) {
	reqBody, err := json.Marshal(map[string]string{"url": shareURL})
	if err != nil {
		return directlink.Value{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return directlink.Value{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return directlink.Value{}, fmt.Errorf("error making resolver backend request: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return directlink.Value{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return directlink.Value{}, statusError(resp, body)
	}

	if isJSON(resp.Header.Get("Content-Type")) {
		return decodeJSON(body)
	}

	text, err := decodeText(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return directlink.Value{}, fmt.Errorf("error decoding resolver backend response: %w", err)
	}
	return directlink.Text(strings.TrimSpace(text)), nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var rd io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gr, err := gzip.NewReader(rd)
		if err != nil {
			return nil, fmt.Errorf("error initializing gzip: %w", err)
		}
		defer gr.Close()
		rd = gr
	case "deflate":
		fr := flate.NewReader(rd)
		defer fr.Close()
		rd = fr
	case "br":
		rd = brotli.NewReader(rd)
	}

	buf := buffers.Get()
	defer buffers.Put(buf)
	if _, err := buf.ReadFrom(io.LimitReader(rd, maxBodySize+1)); err != nil {
		return nil, fmt.Errorf("error reading resolver backend response: %w", err)
	}
	if buf.Len() > maxBodySize {
		return nil, ErrResponseTooLarge
	}
	return bytes.Clone(buf.Bytes()), nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func decodeJSON(body []byte) (directlink.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return directlink.Value{}, fmt.Errorf("invalid json in resolver backend response: %w", err)
	}
	return directlink.FromAny(raw), nil
}

func decodeText(body []byte, contentType string) (string, error) {
	enc, encName, _ := charset.DetermineEncoding(body, contentType)
	if encName == "utf-8" {
		return string(body), nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// statusError builds the error for a non-2xx response, including the
// backend's own error message when it sent one.
func statusError(resp *http.Response, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if isJSON(resp.Header.Get("Content-Type")) && json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("resolver backend: HTTP %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("resolver backend: HTTP %d", resp.StatusCode)
}
