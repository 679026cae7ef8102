// Package fetcher downloads remote archives into a scratch directory and
// extracts them.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// Archive is a downloaded and extracted artifact. Both paths live under the
// destination directory the caller supplied; the caller owns their
// lifecycle and must hand each dependency its own directory to avoid
// collisions.
type Archive struct {
	URL           string
	ArchivePath   string
	ExtractedRoot string
}

// Fetcher downloads over one shared HTTP client.
type Fetcher struct {
	http *http.Client
}

// New builds a Fetcher. A nil client falls back to http.DefaultClient.
func New(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{http: httpClient}
}

// FetchAndExtract downloads the first candidate URL that succeeds and
// extracts it under destDir. All candidates are raced concurrently; losers
// are cancelled once a winner is in. When every candidate fails the result
// is an AggregateError preserving each candidate's failure.
func (f *Fetcher) FetchAndExtract(ctx context.Context, urls []string, destDir string) (*Archive, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no candidate URLs given")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		url     string
		archive string
		err     error
	}
	results := make(chan result, len(urls))

	for _, u := range urls {
		go func(u string) {
			archivePath, err := f.download(raceCtx, u, destDir)
			results <- result{url: u, archive: archivePath, err: err}
		}(u)
	}

	var failures []error
	var won *result
	for range urls {
		r := <-results
		if r.err != nil {
			failures = append(failures, r.err)
			continue
		}
		won = &r
		break
	}
	if won == nil {
		return nil, &AggregateError{Errs: failures}
	}

	root, err := Extract(won.archive, destDir)
	if err != nil {
		return nil, err
	}
	return &Archive{URL: won.url, ArchivePath: won.archive, ExtractedRoot: root}, nil
}

// download streams one URL into destDir, named after the URL's last path
// segment. Any non-2xx response is a failure even if bytes were written; no
// partial-success state is ever returned.
func (f *Fetcher) download(ctx context.Context, rawURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &FetchError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	destPath := filepath.Join(destDir, archiveFileName(rawURL))
	out, err := os.Create(destPath)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	return destPath, nil
}

// archiveFileName derives a local file name from a candidate URL. Distinct
// candidates keep distinct names so race losers never clobber the winner.
func archiveFileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}
