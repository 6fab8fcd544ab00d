package ocr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// SourceKind says where a Source's image bytes come from
type SourceKind int

const (
	SourcePath SourceKind = iota
	SourceURL
	SourceBytes
)

// Source identifies an invoice image: a filesystem path, an HTTP(S) URL, or bytes already in memory
type Source struct {
	Kind SourceKind
	// Location is the path, the URL, or a display name for in-memory data.
	Location string
	Data     []byte
}

// ParseSource treats http:// and https:// locations as URLs and everything else as a path
func ParseSource(s string) Source {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return Source{Kind: SourceURL, Location: s}
	}
	return Source{Kind: SourcePath, Location: s}
}

// FromBytes wraps image data already loaded, e.g. from an upload
func FromBytes(name string, data []byte) Source {
	return Source{Kind: SourceBytes, Location: name, Data: data}
}

// String returns the identifier reported in pipeline metadata
func (s Source) String() string {
	return s.Location
}

// load returns the raw bytes behind the source
func (s Source) load(ctx context.Context, client *http.Client) ([]byte, error) {
	switch s.Kind {
	case SourceBytes:
		if len(s.Data) == 0 {
			return nil, fmt.Errorf("empty image data")
		}
		return s.Data, nil
	case SourceURL:
		return fetch(ctx, client, s.Location)
	default:
		data, err := os.ReadFile(s.Location)
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		return data, nil
	}
}

// fetch downloads url, failing on any non-2xx status
func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching image: %d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}
