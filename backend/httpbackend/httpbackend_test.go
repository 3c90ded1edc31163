//nolint:errcheck
package httpbackend

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/mccutchen/directlink"
)

const shareURL = "https://share.example/s/1abc"

func gzipped(s string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write([]byte(s))
	w.Close()
	return buf.Bytes()
}

func brotlied(s string) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	w.Write([]byte(s))
	w.Close()
	return buf.Bytes()
}

func latin1(s string) []byte {
	b, _ := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	return b
}

func TestGetDownloadLink(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		status          int
		contentType     string
		contentEncoding string
		body            []byte
		wantResult      directlink.Result
		wantNormErr     error
		wantErr         string
	}{
		"json object": {
			status:      http.StatusOK,
			contentType: "application/json",
			body:        []byte(`{"download_link": "https://d.example/f.mp4", "size": 1234}`),
			wantResult: directlink.Result{
				DirectLink: "https://d.example/f.mp4",
				FileInfo:   map[string]any{"download_link": "https://d.example/f.mp4", "size": json.Number("1234")},
			},
		},
		"json string": {
			status:      http.StatusOK,
			contentType: "application/json; charset=utf-8",
			body:        []byte(`"https://d.example/f.mp4"`),
			wantResult: directlink.Result{
				DirectLink: "https://d.example/f.mp4",
				FileInfo:   map[string]any{"url": "https://d.example/f.mp4"},
			},
		},
		"json list": {
			status:      http.StatusOK,
			contentType: "application/json",
			body:        []byte(`[{"url": "A"}, {"url": "B"}]`),
			wantResult: directlink.Result{
				DirectLink: "A",
				FileInfo:   map[string]any{"url": "A"},
			},
		},
		"json without link": {
			status:      http.StatusOK,
			contentType: "application/json",
			body:        []byte(`{"foo": "bar"}`),
			wantNormErr: directlink.ErrNoDirectLink,
		},
		"plain text": {
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        []byte("https://d.example/f.mp4\n"),
			wantResult: directlink.Result{
				DirectLink: "https://d.example/f.mp4",
				FileInfo:   map[string]any{"url": "https://d.example/f.mp4"},
			},
		},
		"plain text in latin1": {
			status:      http.StatusOK,
			contentType: "text/plain; charset=iso-8859-1",
			body:        latin1("https://d.example/café.mp4"),
			wantResult: directlink.Result{
				DirectLink: "https://d.example/café.mp4",
				FileInfo:   map[string]any{"url": "https://d.example/café.mp4"},
			},
		},
		"empty text": {
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        []byte("  \n"),
			wantNormErr: directlink.ErrNoDirectLink,
		},
		"gzip": {
			status:          http.StatusOK,
			contentType:     "application/json",
			contentEncoding: "gzip",
			body:            gzipped(`{"direct_link": "https://d.example/g"}`),
			wantResult: directlink.Result{
				DirectLink: "https://d.example/g",
				FileInfo:   map[string]any{"direct_link": "https://d.example/g"},
			},
		},
		"brotli": {
			status:          http.StatusOK,
			contentType:     "application/json",
			contentEncoding: "br",
			body:            brotlied(`{"link": "https://d.example/b"}`),
			wantResult: directlink.Result{
				DirectLink: "https://d.example/b",
				FileInfo:   map[string]any{"link": "https://d.example/b"},
			},
		},
		"invalid json": {
			status:      http.StatusOK,
			contentType: "application/json",
			body:        []byte(`{"url": `),
			wantErr:     "invalid json in resolver backend response",
		},
		"text at size limit": {
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        []byte(strings.Repeat("a", maxBodySize)),
			wantResult: directlink.Result{
				DirectLink: strings.Repeat("a", maxBodySize),
				FileInfo:   map[string]any{"url": strings.Repeat("a", maxBodySize)},
			},
		},
		"oversized json": {
			status:      http.StatusOK,
			contentType: "application/json",
			body:        []byte(`{"info": "` + strings.Repeat("a", maxBodySize) + `", "download_link": "https://d.example/real"}`),
			wantErr:     "resolver backend response exceeds 1 MiB",
		},
		"oversized text": {
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        []byte(strings.Repeat("a", maxBodySize+1)),
			wantErr:     "resolver backend response exceeds 1 MiB",
		},
		"oversized gzip": {
			status:          http.StatusOK,
			contentType:     "text/plain",
			contentEncoding: "gzip",
			body:            gzipped(strings.Repeat("a", 2*maxBodySize)),
			wantErr:         "resolver backend response exceeds 1 MiB",
		},
		"error status with message": {
			status:      http.StatusNotFound,
			contentType: "application/json",
			body:        []byte(`{"error": "share not found"}`),
			wantErr:     "resolver backend: HTTP 404: share not found",
		},
		"error status without message": {
			status:      http.StatusBadGateway,
			contentType: "text/html",
			body:        []byte(`<h1>bad gateway</h1>`),
			wantErr:     "resolver backend: HTTP 502",
		},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req struct {
					URL string `json:"url"`
				}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, shareURL, req.URL)

				w.Header().Set("Content-Type", tc.contentType)
				if tc.contentEncoding != "" {
					w.Header().Set("Content-Encoding", tc.contentEncoding)
				}
				w.WriteHeader(tc.status)
				w.Write(tc.body)
			}))
			defer srv.Close()

			v, err := New(srv.URL, srv.Client()).GetDownloadLink(context.Background(), shareURL)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)

			result, err := directlink.Normalize(v)
			assert.ErrorIs(t, err, tc.wantNormErr)
			assert.Equal(t, tc.wantResult, result)
		})
	}
}

func TestGetDownloadLinkConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL, nil).GetDownloadLink(context.Background(), shareURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error making resolver backend request")
}

func TestStrategy(t *testing.T) {
	t.Parallel()

	_, err := Strategy("", nil).Acquire(context.Background())
	assert.ErrorIs(t, err, directlink.ErrMissing)

	d := directlink.Detect(context.Background(), Strategy("http://resolver.internal/resolve", nil))
	require.True(t, d.Handle.Available())
	assert.Equal(t, StrategyName, d.Handle.Strategy())
	assert.Equal(t, directlink.ConventionGetDownloadLink, d.Handle.Convention())
}

func TestResolveThroughBackend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"download_link": "X"}`))
	}))
	defer srv.Close()

	d := directlink.Detect(context.Background(), Strategy(srv.URL, srv.Client()))
	result, err := directlink.New(d.Handle).Resolve(context.Background(), shareURL)
	require.NoError(t, err)
	assert.Equal(t, directlink.Result{
		DirectLink: "X",
		FileInfo:   map[string]any{"download_link": "X"},
	}, result)
}
