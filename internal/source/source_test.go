package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepositoryURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Repo
	}{
		{
			name: "plain https",
			raw:  "https://github.com/stevemao/left-pad",
			want: Repo{Host: "github.com", Owner: "stevemao", Name: "left-pad"},
		},
		{
			name: "git+https with .git",
			raw:  "git+https://github.com/stevemao/left-pad.git",
			want: Repo{Host: "github.com", Owner: "stevemao", Name: "left-pad"},
		},
		{
			name: "git scheme",
			raw:  "git://github.com/user/repo.git",
			want: Repo{Host: "github.com", Owner: "user", Name: "repo"},
		},
		{
			name: "ssh scheme",
			raw:  "ssh://git@gitlab.com/user/repo.git",
			want: Repo{Host: "gitlab.com", Owner: "user", Name: "repo"},
		},
		{
			name: "scp-like",
			raw:  "git@github.com:user/repo.git",
			want: Repo{Host: "github.com", Owner: "user", Name: "repo"},
		},
		{
			name: "extra path segments keep first two",
			raw:  "https://github.com/user/repo/tree/main",
			want: Repo{Host: "github.com", Owner: "user", Name: "repo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepositoryURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepositoryURLRejectsUnusable(t *testing.T) {
	for _, raw := range []string{"", "https://github.com/", "https://github.com/onlyowner", "not a url\x7f://"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseRepositoryURL(raw)
			assert.Error(t, err)
		})
	}
}

func TestArchiveCandidates(t *testing.T) {
	repo := Repo{Host: "github.com", Owner: "stevemao", Name: "left-pad"}

	// default: repository's own host, v-tag convention first
	assert.Equal(t, []string{
		"https://github.com/stevemao/left-pad/archive/v1.3.0.tar.gz",
		"https://github.com/stevemao/left-pad/archive/1.3.0.tar.gz",
	}, repo.ArchiveCandidates("", "1.3.0"))

	// base override replaces the host entirely
	assert.Equal(t, []string{
		"http://127.0.0.1:9999/stevemao/left-pad/archive/v1.3.0.tar.gz",
		"http://127.0.0.1:9999/stevemao/left-pad/archive/1.3.0.tar.gz",
	}, repo.ArchiveCandidates("http://127.0.0.1:9999/", "1.3.0"))
}

func TestExtractedRootDir(t *testing.T) {
	repo := Repo{Name: "left-pad"}
	assert.Equal(t, "left-pad-1.3.0", repo.ExtractedRootDir("1.3.0"))
	// hosts strip the leading v from the tag when naming the root
	assert.Equal(t, "left-pad-1.3.0", repo.ExtractedRootDir("v1.3.0"))
}
