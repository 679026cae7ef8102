package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/pkgtrust/npm-verify-tool/internal/config"
	"github.com/pkgtrust/npm-verify-tool/internal/manifest"
	"github.com/pkgtrust/npm-verify-tool/internal/utils/logger"
	"github.com/pkgtrust/npm-verify-tool/internal/verify"
)

// Output and engine command flags
var (
	configFile  string
	registryURL string
	sourceHost  string
	scratchDir  string
	logLevel    string
	concurrency int
	timeout     string
	outFormat   string // "text" | "json" | "yaml"
	prettyJSON  bool   = true
	asLockfile  bool
	progress    bool
)

// errMismatch makes the process exit non-zero exactly when artifacts
// diverged. SKIPPED and ERROR verdicts alone keep the exit clean.
var errMismatch = errors.New("one or more dependencies diverge from their source repository")

// runner lets tests swap the engine out.
type runner interface {
	Run(ctx context.Context, m manifest.Manifest) (*verify.Report, error)
}

var newRunner = func(cfg *config.Config) (runner, error) {
	var opts []verify.Option
	if progress {
		opts = append(opts, verify.WithProgress())
	}
	return verify.New(cfg, opts...)
}

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "npm-verify",
		Short:         "cross-checks npm tarballs against their source repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(createVerifyCommand())
	return rootCmd
}

// createVerifyCommand creates the verify subcommand
func createVerifyCommand() *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify [flags] MANIFEST_FILE",
		Short: "verifies every dependency in a manifest",
		Long: `Verify downloads, for each dependency in the manifest, both the
		tarball published to the npm registry and the release archive
		published by the project's source repository, then compares the
		script files of the two byte-for-byte.`,
		Args: cobra.ExactArgs(1),
		RunE: executeVerify,
	}

	bindEngineFlags(verifyCmd.Flags())
	verifyCmd.Flags().StringVar(&outFormat, "format", "text",
		"Output format: text, json or yaml")
	verifyCmd.Flags().BoolVar(&prettyJSON, "pretty", true,
		"Pretty-print JSON output (only for --format json)")
	verifyCmd.Flags().BoolVar(&asLockfile, "lockfile", false,
		"Treat MANIFEST_FILE as a package-lock.json")
	verifyCmd.Flags().BoolVar(&progress, "progress", false,
		"Show a progress bar")
	return verifyCmd
}

func bindEngineFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configFile, "config", "", "Path to a yaml config file")
	fs.StringVar(&registryURL, "registry", "", "Registry base URL (default public npm registry)")
	fs.StringVar(&sourceHost, "source-host", "", "Override the code-host base URL for release archives")
	fs.StringVar(&scratchDir, "scratch-dir", "", "Directory for downloads and extracted trees (required)")
	fs.StringVar(&logLevel, "log-level", "", "Log level: debug, info or error")
	fs.IntVar(&concurrency, "concurrency", 0, "Dependencies verified in parallel")
	fs.StringVar(&timeout, "timeout", "", "Per-request timeout, e.g. 30s")
}

// resolveConfig layers flag values over the config file over defaults.
func resolveConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if registryURL != "" {
		cfg.RegistryBaseURL = registryURL
	}
	if sourceHost != "" {
		cfg.SourceHostBaseURL = sourceHost
	}
	if scratchDir != "" {
		cfg.ScratchDir = scratchDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout %q: %w", timeout, err)
		}
		cfg.RequestTimeout = config.Duration(d)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// executeVerify handles the verify command execution logic
func executeVerify(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	z, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Init(z)

	var m manifest.Manifest
	if asLockfile {
		m, err = manifest.LoadLockfile(args[0])
	} else {
		m, err = manifest.Load(args[0])
	}
	if err != nil {
		return err
	}

	engine, err := newRunner(cfg)
	if err != nil {
		return err
	}
	report, err := engine.Run(cmd.Context(), m)
	if err != nil {
		return err
	}

	if err := writeReport(cmd, report); err != nil {
		return err
	}
	if report.HasMismatch() {
		return errMismatch
	}
	return nil
}

func writeReport(cmd *cobra.Command, report *verify.Report) error {
	out := cmd.OutOrStdout()

	switch strings.ToLower(outFormat) {
	case "text":
		return report.RenderText(out)
	case "json":
		var (
			b   []byte
			err error
		)
		if prettyJSON {
			b, err = json.MarshalIndent(report, "", "  ")
		} else {
			b, err = json.Marshal(report)
		}
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(b))
		return nil
	case "yaml":
		b, err := sigsyaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, _ = fmt.Fprint(out, string(b))
		return nil
	default:
		return fmt.Errorf("invalid --format %q (expected text|json|yaml)", outFormat)
	}
}
