package reader

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// A source wraps a scene or material library that is either stored on disk
// or streamed over http/https.
type source struct {
	io.ReadCloser
	url *url.URL
}

// Returns the path or URL of this source.
func (s *source) Path() string {
	return s.url.String()
}

func (s *source) IsRemote() bool {
	return s.url.Scheme != ""
}

// Open a source. If relTo is not nil and path does not define a scheme, the
// path is resolved against the directory of relTo.
//
// The caller must close the returned source.
func openSource(path string, relTo *source) (*source, error) {
	loc, err := url.Parse(strings.Replace(path, `\`, `/`, -1))
	if err != nil {
		return nil, err
	}

	if loc.Scheme == "" && relTo != nil && !filepath.IsAbs(loc.Path) {
		relPath := loc.Path
		loc, _ = url.Parse(relTo.url.String())
		prefix := loc.Path
		if loc.Scheme == "" {
			prefix, err = filepath.Abs(relTo.url.String())
			if err != nil {
				return nil, fmt.Errorf("reader: could not detect abs path for %s: %w", relTo.url.String(), err)
			}
		}
		loc.Path = filepath.Dir(prefix) + "/" + relPath
	}

	var rc io.ReadCloser
	switch loc.Scheme {
	case "":
		rc, err = os.Open(filepath.Clean(loc.Path))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		resp, err := http.Get(loc.String())
		if err != nil {
			return nil, fmt.Errorf("reader: could not fetch '%s': %w", loc.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("reader: could not fetch '%s': status %d", loc.String(), resp.StatusCode)
		}
		rc = resp.Body
	default:
		return nil, fmt.Errorf("reader: unsupported scheme '%s'", loc.Scheme)
	}

	return &source{ReadCloser: rc, url: loc}, nil
}

// Wrap an in-memory stream. The name is used to resolve relative paths.
func sourceFromStream(name string, in io.Reader) *source {
	loc, err := url.Parse(strings.Replace(name, `\`, `/`, -1))
	if err != nil {
		loc = &url.URL{Path: name}
	}
	return &source{ReadCloser: io.NopCloser(in), url: loc}
}
