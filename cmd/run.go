// Package cmd implements the flmrctl command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/kbvqa/flmrctl/internal/execx"
	"github.com/kbvqa/flmrctl/internal/experiment"
	"github.com/kbvqa/flmrctl/internal/fetch"
	"github.com/kbvqa/flmrctl/internal/hub"
	"github.com/kbvqa/flmrctl/internal/unpack"
)

// CLI are the cli parameters for the flmrctl binary
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Launch the FLMR retrieval example program."`
	Fetch   FetchCmd   `cmd:"" help:"Download the KBVQA dataset and extract its archives."`
	Extract ExtractCmd `cmd:"" help:"Extract a single archive to a destination."`

	Verbose bool             `short:"v" optional:"" help:"Verbose logging."`
	Version kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// Context carries shared state into the subcommands.
type Context struct {
	Logger *slog.Logger
}

// RunCmd launches the retrieval example program with the configured flags.
// Flags override the experiment file only when given on the command line.
type RunCmd struct {
	Config  string        `short:"f" optional:"" type:"existingfile" help:"Experiment YAML file."`
	Program string        `optional:"" default:"python" help:"Interpreter used to launch the example script."`
	Script  string        `optional:"" default:"examples/example_use_flmr.py" help:"Path to the example script."`
	DryRun  bool          `optional:"" help:"Print the command line instead of executing it."`
	Timeout time.Duration `optional:"" default:"0" help:"Abort the example program after this duration. (0 = none)"`

	UseGPU                  bool    `name:"use-gpu" optional:"" help:"Enable GPU execution."`
	RunIndexing             bool    `optional:"" help:"Build the index before retrieval."`
	IndexRootPath           *string `optional:"" placeholder:"PATH" help:"Index root path."`
	IndexName               *string `optional:"" help:"Index name."`
	ExperimentName          *string `optional:"" help:"Experiment name."`
	IndexingBatchSize       *int    `optional:"" help:"Indexing batch size."`
	ImageRootDir            *string `optional:"" placeholder:"DIR" help:"Image root directory."`
	DatasetPath             *string `optional:"" help:"Dataset path identifier."`
	PassageDatasetPath      *string `optional:"" help:"Passage dataset path identifier."`
	UseSplit                *string `optional:"" help:"Dataset split to use."`
	Nbits                   *int    `optional:"" help:"Quantization bit width."`
	Ks                      []int   `optional:"" help:"Rank cutoffs for evaluation."`
	CheckpointPath          *string `optional:"" help:"Model checkpoint reference."`
	ImageProcessorName      *string `optional:"" help:"Image processor name."`
	QueryBatchSize          *int    `optional:"" help:"Query batch size."`
	NumROIs                 *int    `name:"num-rois" optional:"" help:"Number of regions of interest."`
	CentroidSearchBatchSize *int    `optional:"" help:"Centroid search batch size."`
}

// Run the retrieval example program. The child inherits the standard
// streams and flmrctl exits with the child's exit code.
func (r *RunCmd) Run(appCtx *Context) error {
	cfg, err := r.experimentConfig()
	if err != nil {
		return err
	}

	ctx, cancel := execx.WithTimeout(r.Timeout)
	defer cancel()

	runner := &experiment.Runner{
		Program: r.Program,
		Script:  r.Script,
		DryRun:  r.DryRun,
	}
	res := runner.Run(ctx, cfg)
	if res.Err != nil {
		appCtx.Logger.Error("launching example program failed", "error", res.Err)
	}
	if res.Code != 0 {
		os.Exit(res.Code)
	}
	return nil
}

// experimentConfig merges defaults, the experiment file and command line
// overrides into the final configuration.
func (r *RunCmd) experimentConfig() (*experiment.Config, error) {
	cfg := experiment.Default()
	if r.Config != "" {
		loaded, err := experiment.Load(r.Config)
		if err != nil {
			return nil, errors.Wrap(err, "loading experiment config")
		}
		cfg = *loaded
	}

	if r.UseGPU {
		cfg.UseGPU = true
	}
	if r.RunIndexing {
		cfg.RunIndexing = true
	}
	if r.IndexRootPath != nil {
		cfg.IndexRootPath = *r.IndexRootPath
	}
	if r.IndexName != nil {
		cfg.IndexName = *r.IndexName
	}
	if r.ExperimentName != nil {
		cfg.ExperimentName = *r.ExperimentName
	}
	if r.IndexingBatchSize != nil {
		cfg.IndexingBatchSize = *r.IndexingBatchSize
	}
	if r.ImageRootDir != nil {
		cfg.ImageRootDir = *r.ImageRootDir
	}
	if r.DatasetPath != nil {
		cfg.DatasetPath = *r.DatasetPath
	}
	if r.PassageDatasetPath != nil {
		cfg.PassageDatasetPath = *r.PassageDatasetPath
	}
	if r.UseSplit != nil {
		cfg.UseSplit = *r.UseSplit
	}
	if r.Nbits != nil {
		cfg.Nbits = *r.Nbits
	}
	if len(r.Ks) > 0 {
		cfg.Ks = r.Ks
	}
	if r.CheckpointPath != nil {
		cfg.CheckpointPath = *r.CheckpointPath
	}
	if r.ImageProcessorName != nil {
		cfg.ImageProcessorName = *r.ImageProcessorName
	}
	if r.QueryBatchSize != nil {
		cfg.QueryBatchSize = *r.QueryBatchSize
	}
	if r.NumROIs != nil {
		cfg.NumROIs = *r.NumROIs
	}
	if r.CentroidSearchBatchSize != nil {
		cfg.CentroidSearchBatchSize = r.CentroidSearchBatchSize
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid experiment config")
	}
	return &cfg, nil
}

// FetchCmd downloads the dataset repository and extracts every archive
// found in the local tree.
type FetchCmd struct {
	Repo         string `optional:"" default:"LinWeizheDragon/KBVQA_data" help:"Dataset repository on the Hub."`
	LocalDir     string `optional:"" default:"KBVQA_data" help:"Local directory for the download."`
	RepoType     string `optional:"" default:"dataset" help:"Hub repository type."`
	Downloader   string `optional:"" default:"huggingface-cli" help:"External download tool."`
	Verify       bool   `optional:"" help:"Check the repository on the Hub before downloading."`
	SkipDownload bool   `optional:"" help:"Extract an already downloaded tree without downloading."`
	DryRun       bool   `optional:"" help:"Print planned work without downloading or extracting."`

	ContinueOnError   bool  `optional:"" default:"true" negatable:"" help:"Continue with the remaining archives when one fails."`
	DenySymlinks      bool  `short:"D" help:"Deny symlink extraction."`
	MaxFiles          int64 `optional:"" default:"100000" help:"Maximum files extracted per archive. (disable check: -1)"`
	MaxExtractionSize int64 `optional:"" default:"1073741824" help:"Maximum extraction size per archive (in bytes). (disable check: -1)"`
	Overwrite         bool  `optional:"" default:"true" negatable:"" help:"Overwrite existing files, like the conventional extraction tools."`
}

// Run the fetch-and-extract operation.
func (f *FetchCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	if f.Verify {
		client := hub.NewClient()
		ds, err := client.DatasetInfo(ctx, f.Repo)
		if err != nil {
			return errors.Wrap(err, "verifying dataset repository")
		}
		appCtx.Logger.Info("dataset repository verified", "id", ds.ID, "sha", ds.SHA, "files", len(ds.Siblings))
	}

	cfg := unpack.NewConfig(
		unpack.WithContinueOnError(f.ContinueOnError),
		unpack.WithContinueOnUnsupportedFiles(f.ContinueOnError),
		unpack.WithDenySymlinkExtraction(f.DenySymlinks),
		unpack.WithLogger(appCtx.Logger),
		unpack.WithMaxExtractionSize(f.MaxExtractionSize),
		unpack.WithMaxFiles(f.MaxFiles),
		unpack.WithOverwrite(f.Overwrite),
	)

	fetcher := fetch.NewFetcher(
		fetch.WithRepo(f.Repo),
		fetch.WithLocalDir(f.LocalDir),
		fetch.WithRepoType(f.RepoType),
		fetch.WithDownloaderCommand(f.Downloader),
		fetch.WithUnpackConfig(cfg),
		fetch.WithContinueOnError(f.ContinueOnError),
		fetch.WithDryRun(f.DryRun),
		fetch.WithLogger(appCtx.Logger),
	)

	if f.SkipDownload {
		if err := fetcher.ExtractAll(ctx, f.LocalDir); err != nil {
			return errors.Wrap(err, "extracting dataset archives")
		}
		return nil
	}

	if err := fetcher.Run(ctx); err != nil {
		return errors.Wrap(err, "fetching dataset")
	}
	return nil
}

// ExtractCmd extracts a single archive to a destination directory.
type ExtractCmd struct {
	Archive           string `arg:"" name:"archive" help:"Path to archive." type:"existingfile"`
	Destination       string `arg:"" name:"destination" default:"." help:"Output directory."`
	ContinueOnError   bool   `short:"C" help:"Continue extraction on error."`
	CreateDestination bool   `short:"c" help:"Create destination directory if it does not exist."`
	DenySymlinks      bool   `short:"D" help:"Deny symlink extraction."`
	MaxFiles          int64  `optional:"" default:"100000" help:"Maximum files that are extracted before stop. (disable check: -1)"`
	MaxExtractionSize int64  `optional:"" default:"1073741824" help:"Maximum extraction size that allowed is (in bytes). (disable check: -1)"`
	MaxExtractionTime int64  `optional:"" default:"60" help:"Maximum time that an extraction should take (in seconds). (disable check: -1)"`
	MaxInputSize      int64  `optional:"" default:"1073741824" help:"Maximum input size that allowed is (in bytes). (disable check: -1)"`
	Overwrite         bool   `short:"O" help:"Overwrite if exist."`
	Telemetry         bool   `short:"T" optional:"" default:"false" help:"Print telemetry data to log after extraction."`
}

// Run a single extraction.
func (e *ExtractCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if e.MaxExtractionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*time.Duration(e.MaxExtractionTime))
		defer cancel()
	}

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, rep *unpack.Report) {
		if e.Telemetry {
			appCtx.Logger.Info("extraction finished", "telemetry", rep)
		}
	}

	cfg := unpack.NewConfig(
		unpack.WithContinueOnError(e.ContinueOnError),
		unpack.WithCreateDestination(e.CreateDestination),
		unpack.WithDenySymlinkExtraction(e.DenySymlinks),
		unpack.WithLogger(appCtx.Logger),
		unpack.WithMaxExtractionSize(e.MaxExtractionSize),
		unpack.WithMaxFiles(e.MaxFiles),
		unpack.WithMaxInputSize(e.MaxInputSize),
		unpack.WithOverwrite(e.Overwrite),
		unpack.WithTelemetryHook(telemetryToLog),
	)

	if err := unpack.Unpack(ctx, e.Archive, e.Destination, cfg); err != nil {
		return errors.Wrap(err, "error during extraction")
	}
	return nil
}

// Run the entrypoint into flmrctl as a cli tool
func Run(version, commit, date string) {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Description("FLMR retrieval experiment toolkit"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// make .env values visible to env lookups (HF_TOKEN)
	_ = godotenv.Load()

	if err := kctx.Run(&Context{Logger: logger}); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
