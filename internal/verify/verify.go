// Package verify drives the full check for each dependency in a manifest:
// registry lookup, dual artifact download, file-map reconciliation and
// per-file hash comparison.
package verify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pkgtrust/npm-verify-tool/internal/config"
	"github.com/pkgtrust/npm-verify-tool/internal/fetcher"
	"github.com/pkgtrust/npm-verify-tool/internal/filemap"
	"github.com/pkgtrust/npm-verify-tool/internal/hashutil"
	"github.com/pkgtrust/npm-verify-tool/internal/manifest"
	"github.com/pkgtrust/npm-verify-tool/internal/registry"
	"github.com/pkgtrust/npm-verify-tool/internal/source"
	"github.com/pkgtrust/npm-verify-tool/internal/utils/logger"
	"github.com/pkgtrust/npm-verify-tool/internal/utils/network"
)

// Verifier checks registry tarballs against source release archives.
type Verifier struct {
	cfg      *config.Config
	registry *registry.Client
	fetcher  *fetcher.Fetcher
	filter   filemap.Filter
	log      *zap.SugaredLogger
	progress bool
}

// Option adjusts a Verifier.
type Option func(*Verifier)

// WithProgress enables a progress bar ticking once per finished dependency.
func WithProgress() Option {
	return func(v *Verifier) { v.progress = true }
}

// WithFilter replaces the default script-file filter.
func WithFilter(f filemap.Filter) Option {
	return func(v *Verifier) { v.filter = f }
}

// New builds a Verifier from a validated config.
func New(cfg *config.Config, opts ...Option) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.CreateScratchDir(); err != nil {
		return nil, fmt.Errorf("preparing scratch directory: %w", err)
	}

	httpClient := network.NewSecureHTTPClient(cfg.RequestTimeout.Std())
	v := &Verifier{
		cfg:      cfg,
		registry: registry.NewClient(cfg.RegistryBaseURL, httpClient),
		fetcher:  fetcher.New(httpClient),
		filter:   filemap.ExtFilter(filemap.DefaultScriptExt),
		log:      logger.Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Run verifies every dependency in the manifest and returns the ordered
// report. Dependencies are verified concurrently under the configured
// bound; one dependency's failure never aborts the run. The only errors
// returned here are setup failures before any verification starts.
func (v *Verifier) Run(ctx context.Context, m manifest.Manifest) (*Report, error) {
	scratch, err := v.cfg.ScratchDirAbs()
	if err != nil {
		return nil, fmt.Errorf("resolving scratch directory: %w", err)
	}
	// each run gets its own namespace so concurrent or repeated runs never
	// collide in the scratch directory
	runDir := filepath.Join(scratch, "run-"+uuid.NewString())

	names := m.Names()
	verdicts := make([]Verdict, len(names))

	var bar *progressbar.ProgressBar
	if v.progress {
		bar = progressbar.NewOptions(len(names),
			progressbar.OptionSetDescription("verifying"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
		)
	}

	g := new(errgroup.Group)
	g.SetLimit(v.cfg.Concurrency)
	for i, name := range names {
		entry := m[name]
		g.Go(func() error {
			depDir := filepath.Join(runDir, scratchName(name, entry.Version))
			verdicts[i] = v.checkDependency(ctx, name, entry.Version, depDir)
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	if bar != nil {
		bar.Finish()
	}

	return NewReport(verdicts), nil
}

// checkDependency produces exactly one verdict. Every failure past the
// metadata's repository check is caught here and folded into an ERROR
// verdict.
func (v *Verifier) checkDependency(ctx context.Context, name, version, depDir string) Verdict {
	v.log.Debugf("verifying %s@%s", name, version)

	meta, err := v.registry.GetPackageMetadata(ctx, name)
	if err != nil {
		v.log.Errorf("%s@%s: registry metadata fetch failed: %v", name, version, err)
		return errorVerdict(name, version, err)
	}

	repoURL := meta.RepositoryURL()
	if repoURL == "" {
		v.log.Infof("%s@%s: no repository URL in registry metadata, skipping", name, version)
		return skippedVerdict(name, version, "no repository URL in registry metadata")
	}
	repo, err := source.ParseRepositoryURL(repoURL)
	if err != nil {
		v.log.Infof("%s@%s: unusable repository URL %q, skipping: %v", name, version, repoURL, err)
		return skippedVerdict(name, version, fmt.Sprintf("unusable repository URL %q", repoURL))
	}

	regArch, srcArch, err := v.fetchArtifacts(ctx, meta, repo, name, version, depDir)
	if err != nil {
		var agg *fetcher.AggregateError
		if errors.As(err, &agg) && agg.AllNotFound() {
			v.log.Warnf("%s@%s: no release archive under %s for tags %v; the project may tag releases differently",
				name, version, repo, source.TagCandidates(version))
		} else {
			v.log.Errorf("%s@%s: artifact fetch failed: %v", name, version, err)
		}
		return errorVerdict(name, version, err)
	}

	// both artifact layouts nest real content one directory down
	regRoot := filepath.Join(regArch.ExtractedRoot, registry.TarballRootDir)
	srcRoot := filepath.Join(srcArch.ExtractedRoot, repo.ExtractedRootDir(version))

	regMap, err := filemap.Build(regRoot, v.filter)
	if err != nil {
		v.log.Errorf("%s@%s: mapping registry tarball failed: %v", name, version, err)
		return errorVerdict(name, version, err)
	}
	srcMap, err := filemap.Build(srcRoot, v.filter)
	if err != nil {
		v.log.Errorf("%s@%s: mapping source archive failed: %v", name, version, err)
		return errorVerdict(name, version, err)
	}

	mismatched, missing, err := v.compareTrees(regRoot, srcRoot, regMap, srcMap)
	if err != nil {
		v.log.Errorf("%s@%s: hashing failed: %v", name, version, err)
		return errorVerdict(name, version, err)
	}
	for _, p := range missing {
		v.log.Infof("%s@%s: %s exists in the registry tarball only; likely generated at publish time", name, version, p)
	}

	verdict := Verdict{
		Dependency:      name,
		Version:         version,
		Status:          StatusOK,
		MismatchedPaths: mismatched,
		MissingPaths:    missing,
	}
	if len(mismatched) > 0 {
		verdict.Status = StatusMismatch
		v.log.Errorf("%s@%s: %d file(s) differ between registry and source", name, version, len(mismatched))
	}
	return verdict
}

// fetchArtifacts downloads and extracts both sides concurrently. Each side
// gets its own subdirectory so identically named archives cannot collide.
func (v *Verifier) fetchArtifacts(ctx context.Context, meta *registry.Metadata, repo source.Repo, name, version, depDir string) (reg, src *fetcher.Archive, err error) {
	tarballURL := v.registry.TarballURL(meta, name, version)
	candidates := repo.ArchiveCandidates(v.cfg.SourceHostBaseURL, version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := v.fetcher.FetchAndExtract(gctx, []string{tarballURL}, filepath.Join(depDir, "registry"))
		if err != nil {
			return fmt.Errorf("registry artifact: %w", err)
		}
		reg = a
		return nil
	})
	g.Go(func() error {
		a, err := v.fetcher.FetchAndExtract(gctx, candidates, filepath.Join(depDir, "source"))
		if err != nil {
			return fmt.Errorf("source artifact: %w", err)
		}
		src = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return reg, src, nil
}

// compareTrees hashes every registry-side file against its source-side
// counterpart. The registry map is authoritative: source-side extras are
// never inspected. Hashing runs in parallel under a bound; results are
// collected by index so the returned slices stay in sorted path order.
func (v *Verifier) compareTrees(regRoot, srcRoot string, regMap, srcMap filemap.Map) (mismatched, missing []string, err error) {
	paths := regMap.Paths()
	outcomes := make([]hashutil.Outcome, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(v.cfg.HashWorkers)
	for i, p := range paths {
		if !srcMap.Has(p) {
			outcomes[i] = hashutil.Missing
			continue
		}
		g.Go(func() error {
			outcome, err := hashutil.CompareFiles(
				filepath.Join(regRoot, filepath.FromSlash(p)),
				filepath.Join(srcRoot, filepath.FromSlash(p)),
			)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	mismatched = []string{}
	for i, p := range paths {
		switch outcomes[i] {
		case hashutil.Differs:
			mismatched = append(mismatched, p)
		case hashutil.Missing:
			missing = append(missing, p)
		}
	}
	return mismatched, missing, nil
}

func errorVerdict(name, version string, err error) Verdict {
	return Verdict{
		Dependency:      name,
		Version:         version,
		Status:          StatusError,
		MismatchedPaths: []string{},
		Reason:          err.Error(),
	}
}

func skippedVerdict(name, version, reason string) Verdict {
	return Verdict{
		Dependency:      name,
		Version:         version,
		Status:          StatusSkipped,
		MismatchedPaths: []string{},
		Reason:          reason,
	}
}

// scratchName flattens a package name@version into a directory name; scoped
// package names contain a slash.
func scratchName(name, version string) string {
	r := strings.NewReplacer("/", "_", "@", "")
	return r.Replace(name) + "-" + version
}
