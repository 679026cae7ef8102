// Package registry talks to an npm-compatible package registry.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// TarballRootDir is the directory npm nests tarball contents under. This is
// a registry convention, not part of any contract; if the registry ever
// changes its archive layout this constant is the place to follow it.
const TarballRootDir = "package"

// LatestTag is the dist-tag consulted by GetLatestVersion.
const LatestTag = "latest"

// Error is returned for any metadata fetch failure: transport errors,
// non-2xx statuses and malformed bodies. Status is zero when no HTTP
// response was received.
type Error struct {
	Package string
	URL     string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("registry request for %s failed: %s returned status %d", e.Package, e.URL, e.Status)
	}
	return fmt.Sprintf("registry request for %s failed: %v", e.Package, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports whether the registry said the package does not exist,
// as opposed to a transient failure.
func (e *Error) NotFound() bool { return e.Status == http.StatusNotFound }

// Repository is the packument's repository field. Older packuments publish
// it as a bare string, newer ones as {type, url}; both decode.
type Repository struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (r *Repository) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.URL = s
		return nil
	}
	type plain Repository
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Repository(p)
	return nil
}

// Dist describes where a published version's tarball lives.
type Dist struct {
	Tarball   string `json:"tarball"`
	Shasum    string `json:"shasum"`
	Integrity string `json:"integrity"`
}

// Version is the per-version slice of a packument we care about.
type Version struct {
	Dist Dist `json:"dist"`
}

// Metadata is the subset of a packument the verifier consumes.
type Metadata struct {
	Name       string             `json:"name"`
	DistTags   map[string]string  `json:"dist-tags"`
	Repository *Repository        `json:"repository"`
	Versions   map[string]Version `json:"versions"`
}

// RepositoryURL returns the source-repository URL, or "" when the packument
// carries none.
func (m *Metadata) RepositoryURL() string {
	if m.Repository == nil {
		return ""
	}
	return m.Repository.URL
}

// Client issues read-only requests against one registry base URL. It never
// retries; retry policy belongs to the caller.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given base URL, e.g.
// "https://registry.npmjs.org".
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// GetPackageMetadata fetches and decodes the packument for name.
func (c *Client) GetPackageMetadata(ctx context.Context, name string) (*Metadata, error) {
	if name == "" {
		return nil, fmt.Errorf("package name must not be empty")
	}
	reqURL := c.baseURL + "/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Package: name, URL: reqURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Package: name, URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{Package: name, URL: reqURL, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var meta Metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, &Error{Package: name, URL: reqURL, Err: fmt.Errorf("decoding packument: %w", err)}
	}
	return &meta, nil
}

// GetLatestVersion resolves the "latest" dist-tag for name.
func (c *Client) GetLatestVersion(ctx context.Context, name string) (string, error) {
	meta, err := c.GetPackageMetadata(ctx, name)
	if err != nil {
		return "", err
	}
	version, ok := meta.DistTags[LatestTag]
	if !ok || version == "" {
		return "", &Error{Package: name, Err: fmt.Errorf("packument has no %q dist-tag", LatestTag)}
	}
	return version, nil
}

// TarballURL returns the download URL for a pinned version, preferring the
// packument's own dist.tarball and falling back to the registry's
// deterministic layout.
func (c *Client) TarballURL(meta *Metadata, name, version string) string {
	if meta != nil {
		if v, ok := meta.Versions[version]; ok && v.Dist.Tarball != "" {
			return v.Dist.Tarball
		}
	}
	return c.DefaultTarballURL(name, version)
}

// DefaultTarballURL builds <base>/<name>/-/<basename>-<version>.tgz. For
// scoped packages the file part drops the scope, matching npm's layout.
func (c *Client) DefaultTarballURL(name, version string) string {
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", c.baseURL, name, path.Base(name), version)
}
