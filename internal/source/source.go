// Package source derives release-archive locations from the repository URL a
// package publishes in its registry metadata.
package source

import (
	"fmt"
	"net/url"
	"strings"
)

// ArchivePathFormat is the code-host path serving a tar.gz of a git ref.
// GitHub, GitLab, Gitea and Forgejo all honor this shape; it is a host
// convention, not a guarantee.
const ArchivePathFormat = "%s/%s/%s/archive/%s.tar.gz"

// Repo identifies one repository on a code host.
type Repo struct {
	Host  string
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Host + "/" + r.Owner + "/" + r.Name }

// ParseRepositoryURL normalizes the shorthand forms npm packuments use for
// repository URLs and extracts host, owner and repo name. Accepted shapes:
//
//	https://github.com/user/repo
//	git+https://github.com/user/repo.git
//	git://github.com/user/repo.git
//	ssh://git@github.com/user/repo.git
//	git@github.com:user/repo.git
func ParseRepositoryURL(raw string) (Repo, error) {
	if raw == "" {
		return Repo{}, fmt.Errorf("repository URL is empty")
	}

	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")

	// scp-like syntax has no scheme; rewrite it into a URL first
	if !strings.Contains(s, "://") && strings.Contains(s, "@") && strings.Contains(s, ":") {
		s = strings.TrimPrefix(s, "git@")
		s = "https://" + strings.Replace(s, ":", "/", 1)
	}

	u, err := url.Parse(s)
	if err != nil {
		return Repo{}, fmt.Errorf("parsing repository URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return Repo{}, fmt.Errorf("repository URL %q has no host", raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return Repo{}, fmt.Errorf("repository URL %q has no user/repo path", raw)
	}

	host := u.Host
	if u.User != nil {
		// ssh://git@host/... keeps the user in the URL; the archive
		// endpoint is plain https
		host = u.Hostname()
	}

	return Repo{
		Host:  host,
		Owner: segments[0],
		Name:  strings.TrimSuffix(segments[1], ".git"),
	}, nil
}

// TagCandidates returns the release tags that may correspond to a package
// version. Some projects tag v1.2.3, others 1.2.3; there is no way to know
// up front, so the fetcher races both.
func TagCandidates(version string) []string {
	return []string{"v" + version, version}
}

// ArchiveCandidates builds the ordered candidate URLs for a version's source
// archive. baseURL overrides the repository's own host when non-empty
// (mirrors, tests).
func (r Repo) ArchiveCandidates(baseURL, version string) []string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://" + r.Host
	}

	tags := TagCandidates(version)
	urls := make([]string, 0, len(tags))
	for _, tag := range tags {
		urls = append(urls, fmt.Sprintf(ArchivePathFormat, base, r.Owner, r.Name, tag))
	}
	return urls
}

// ExtractedRootDir is the directory a code host nests archive contents
// under: <repo>-<version>, with any leading "v" stripped from the tag.
// Another host convention the comparator depends on.
func (r Repo) ExtractedRootDir(version string) string {
	return r.Name + "-" + strings.TrimPrefix(version, "v")
}
