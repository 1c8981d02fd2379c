// Package fetch downloads a dataset repository from the HuggingFace Hub
// and extracts every recognized archive found inside it.
package fetch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/kbvqa/flmrctl/internal/execx"
	"github.com/kbvqa/flmrctl/internal/unpack"
)

const (
	// DefaultRepo is the dataset repository fetched when none is given.
	DefaultRepo = "LinWeizheDragon/KBVQA_data"

	// DefaultLocalDir is the local directory the dataset is placed in.
	DefaultLocalDir = "KBVQA_data"

	// DefaultRepoType marks the repository as a dataset on the Hub.
	DefaultRepoType = "dataset"

	// DefaultDownloader is the external download tool.
	DefaultDownloader = "huggingface-cli"
)

// Fetcher downloads a dataset repository and extracts the archives in it.
// Archives are always extracted into their own containing directory.
type Fetcher struct {
	repo            string
	localDir        string
	repoType        string
	downloader      string
	commander       Commander
	cfg             *unpack.Config
	continueOnError bool
	dryRun          bool
	out             io.Writer
	logger          *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRepo sets the dataset repository to download.
func WithRepo(repo string) FetcherOption {
	return func(f *Fetcher) {
		f.repo = repo
	}
}

// WithLocalDir sets the local directory the dataset is downloaded to.
func WithLocalDir(dir string) FetcherOption {
	return func(f *Fetcher) {
		f.localDir = dir
	}
}

// WithRepoType sets the Hub repository type.
func WithRepoType(repoType string) FetcherOption {
	return func(f *Fetcher) {
		f.repoType = repoType
	}
}

// WithDownloaderCommand sets the external download tool.
func WithDownloaderCommand(name string) FetcherOption {
	return func(f *Fetcher) {
		f.downloader = name
	}
}

// WithCommander sets how external commands are executed.
func WithCommander(c Commander) FetcherOption {
	return func(f *Fetcher) {
		f.commander = c
	}
}

// WithUnpackConfig sets the extraction engine configuration.
func WithUnpackConfig(cfg *unpack.Config) FetcherOption {
	return func(f *Fetcher) {
		f.cfg = cfg
	}
}

// WithContinueOnError controls whether a failed extraction aborts the
// remaining archives or is recorded and skipped.
func WithContinueOnError(continueOnError bool) FetcherOption {
	return func(f *Fetcher) {
		f.continueOnError = continueOnError
	}
}

// WithDryRun prints what would be done without downloading or extracting.
func WithDryRun(dryRun bool) FetcherOption {
	return func(f *Fetcher) {
		f.dryRun = dryRun
	}
}

// WithOutput sets the writer for progress and completion lines.
func WithOutput(w io.Writer) FetcherOption {
	return func(f *Fetcher) {
		f.out = w
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher with the given options applied over the
// defaults.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		repo:            DefaultRepo,
		localDir:        DefaultLocalDir,
		repoType:        DefaultRepoType,
		downloader:      DefaultDownloader,
		commander:       systemCommander{},
		cfg:             unpack.NewConfig(),
		continueOnError: true,
		out:             os.Stdout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Download invokes the external download tool once for the configured
// repository. The tool inherits the standard streams; its error and exit
// status surface unchanged and there is no retry.
func (f *Fetcher) Download(ctx context.Context) error {
	args := []string{"download", f.repo, "--local-dir", f.localDir, "--repo-type", f.repoType}

	if f.dryRun {
		fmt.Fprintln(os.Stderr, execx.CommandLine(f.downloader, args...))
		return nil
	}

	f.logger.Info("downloading dataset", "repo", f.repo, "dir", f.localDir)
	res := f.commander.Run(ctx, f.downloader, args...)
	if res.Code != 0 {
		if res.Err != nil {
			return fmt.Errorf("downloading %s: %w", f.repo, res.Err)
		}
		return fmt.Errorf("downloading %s: %s exited with code %d", f.repo, f.downloader, res.Code)
	}

	return nil
}

// ExtractAll walks base and extracts every regular file recognized as an
// archive into its own containing directory. A progress line precedes each
// extraction and a completion line with aggregate counts follows the walk.
// Failed extractions are logged and collected; the aggregate is returned.
func (f *Fetcher) ExtractAll(ctx context.Context, base string) error {
	var merr *multierror.Error
	var archives, failures int
	var aborted bool

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			merr = multierror.Append(merr, cerr)
			aborted = true
			return filepath.SkipAll
		}
		if err != nil {
			f.logger.Error("walk failed", "path", path, "error", err)
			merr = multierror.Append(merr, err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		kind, ok := unpack.Classify(d.Name())
		if !ok {
			return nil
		}
		archives++

		if f.dryRun {
			fmt.Fprintf(f.out, "Would extract %s\n", path)
			return nil
		}

		fmt.Fprintf(f.out, "Extracting %s\n", path)
		f.logger.Debug("extract archive", "kind", kind, "path", path)
		if uerr := unpack.UnpackKind(ctx, kind, path, filepath.Dir(path), f.cfg); uerr != nil {
			failures++
			f.logger.Error("extraction failed", "archive", path, "error", uerr)
			merr = multierror.Append(merr, fmt.Errorf("extracting %s: %w", path, uerr))
			if !f.continueOnError {
				aborted = true
				return filepath.SkipAll
			}
		}

		return nil
	})
	if err != nil {
		merr = multierror.Append(merr, err)
	}

	if !aborted {
		fmt.Fprintf(f.out, "Extraction complete: %d archives, %d failures\n", archives, failures)
	}

	return merr.ErrorOrNil()
}

// Run performs the whole fetch-and-extract operation.
func (f *Fetcher) Run(ctx context.Context) error {
	if err := f.Download(ctx); err != nil {
		return err
	}
	return f.ExtractAll(ctx, f.localDir)
}
