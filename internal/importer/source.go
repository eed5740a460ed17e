package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxPayload bounds payloads read from any source.
const maxPayload = 64 << 20

// Source reads import payloads from a local file, standard input ("-") or
// an http(s) URL.
type Source struct {
	Client *http.Client
	Stdin  io.Reader
}

// NewSource returns a Source with a bounded HTTP client.
func NewSource(stdin io.Reader) *Source {
	return &Source{
		Client: &http.Client{Timeout: 60 * time.Second},
		Stdin:  stdin,
	}
}

// IsURL reports whether location names an http(s) resource.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Read returns the payload at location.
func (s *Source) Read(ctx context.Context, location string) ([]byte, error) {
	switch {
	case location == "-":
		data, err := io.ReadAll(io.LimitReader(s.Stdin, maxPayload))
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	case IsURL(location):
		return s.fetch(ctx, location)
	default:
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		return data, nil
	}
}

func (s *Source) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return data, nil
}
