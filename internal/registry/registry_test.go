package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client())
}

func TestGetPackageMetadata(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/left-pad", r.URL.Path)
		fmt.Fprint(w, `{
			"name": "left-pad",
			"dist-tags": {"latest": "1.3.0"},
			"repository": {"type": "git", "url": "git+https://github.com/stevemao/left-pad.git"},
			"versions": {
				"1.3.0": {"dist": {"tarball": "https://registry.npmjs.org/left-pad/-/left-pad-1.3.0.tgz", "shasum": "abc"}}
			}
		}`)
	})

	meta, err := client.GetPackageMetadata(context.Background(), "left-pad")
	require.NoError(t, err)

	assert.Equal(t, "left-pad", meta.Name)
	assert.Equal(t, "1.3.0", meta.DistTags["latest"])
	assert.Equal(t, "git+https://github.com/stevemao/left-pad.git", meta.RepositoryURL())
	assert.Equal(t, "https://registry.npmjs.org/left-pad/-/left-pad-1.3.0.tgz", meta.Versions["1.3.0"].Dist.Tarball)
}

func TestGetPackageMetadataRepositoryAsString(t *testing.T) {
	// older packuments publish repository as a bare string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "old", "repository": "github.com/user/old"}`)
	})

	meta, err := client.GetPackageMetadata(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "github.com/user/old", meta.RepositoryURL())
}

func TestGetPackageMetadataNoRepository(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "bare"}`)
	})

	meta, err := client.GetPackageMetadata(context.Background(), "bare")
	require.NoError(t, err)
	assert.Empty(t, meta.RepositoryURL())
}

func TestGetPackageMetadataNotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.GetPackageMetadata(context.Background(), "ghost")
	require.Error(t, err)

	var regErr *Error
	require.True(t, errors.As(err, &regErr), "want a typed registry error, got %T", err)
	assert.Equal(t, http.StatusNotFound, regErr.Status)
	assert.True(t, regErr.NotFound())
}

func TestGetPackageMetadataMalformedBody(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": `)
	})

	_, err := client.GetPackageMetadata(context.Background(), "broken")
	require.Error(t, err)

	var regErr *Error
	require.True(t, errors.As(err, &regErr))
	assert.False(t, regErr.NotFound())
}

func TestGetPackageMetadataEmptyName(t *testing.T) {
	client := NewClient("https://registry.example.test", nil)
	_, err := client.GetPackageMetadata(context.Background(), "")
	assert.Error(t, err)
}

func TestGetLatestVersion(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "left-pad", "dist-tags": {"latest": "1.3.0"}}`)
	})

	version, err := client.GetLatestVersion(context.Background(), "left-pad")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", version)
}

func TestGetLatestVersionMissingTag(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "left-pad", "dist-tags": {}}`)
	})

	_, err := client.GetLatestVersion(context.Background(), "left-pad")
	assert.Error(t, err)
}

func TestTarballURL(t *testing.T) {
	client := NewClient("https://registry.example.test/", nil)

	meta := &Metadata{Versions: map[string]Version{
		"1.3.0": {Dist: Dist{Tarball: "https://cdn.example.test/left-pad-1.3.0.tgz"}},
	}}

	// packument's own tarball URL wins for a known version
	assert.Equal(t, "https://cdn.example.test/left-pad-1.3.0.tgz",
		client.TarballURL(meta, "left-pad", "1.3.0"))

	// unknown version falls back to the deterministic layout
	assert.Equal(t, "https://registry.example.test/left-pad/-/left-pad-9.9.9.tgz",
		client.TarballURL(meta, "left-pad", "9.9.9"))

	// scoped packages drop the scope from the file part
	assert.Equal(t, "https://registry.example.test/@scope/pkg/-/pkg-1.0.0.tgz",
		client.DefaultTarballURL("@scope/pkg", "1.0.0"))
}
