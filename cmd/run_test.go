package cmd

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T) (*CLI, *kong.Kong) {
	t.Helper()

	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	return cli, parser
}

func discardContext() *Context {
	return &Context{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))}
}

func TestParseRun(t *testing.T) {
	cli, parser := newTestParser(t)
	_, err := parser.Parse([]string{
		"run", "--dry-run", "--use-gpu", "--run-indexing",
		"--ks", "5,10", "--index-name", "EVQA",
	})
	require.NoError(t, err)

	assert.True(t, cli.Run.DryRun)
	assert.True(t, cli.Run.UseGPU)
	assert.True(t, cli.Run.RunIndexing)
	assert.Equal(t, []int{5, 10}, cli.Run.Ks)
	require.NotNil(t, cli.Run.IndexName)
	assert.Equal(t, "EVQA", *cli.Run.IndexName)
	assert.Equal(t, "python", cli.Run.Program)
	assert.Equal(t, "examples/example_use_flmr.py", cli.Run.Script)
	assert.Nil(t, cli.Run.Nbits)
}

func TestParseFetchDefaults(t *testing.T) {
	cli, parser := newTestParser(t)
	_, err := parser.Parse([]string{"fetch"})
	require.NoError(t, err)

	assert.Equal(t, "LinWeizheDragon/KBVQA_data", cli.Fetch.Repo)
	assert.Equal(t, "KBVQA_data", cli.Fetch.LocalDir)
	assert.Equal(t, "dataset", cli.Fetch.RepoType)
	assert.Equal(t, "huggingface-cli", cli.Fetch.Downloader)
	assert.True(t, cli.Fetch.ContinueOnError)
	assert.True(t, cli.Fetch.Overwrite)
	assert.False(t, cli.Fetch.Verify)
}

func TestParseFetchNegation(t *testing.T) {
	cli, parser := newTestParser(t)
	_, err := parser.Parse([]string{"fetch", "--no-continue-on-error", "--no-overwrite"})
	require.NoError(t, err)

	assert.False(t, cli.Fetch.ContinueOnError)
	assert.False(t, cli.Fetch.Overwrite)
}

func TestExperimentConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index_name: FROMFILE\nnbits: 4\n"), 0644))

	name := "FROMFLAG"
	r := &RunCmd{Config: path, IndexName: &name}
	cfg, err := r.experimentConfig()
	require.NoError(t, err)

	// flag wins over file, file wins over default
	assert.Equal(t, "FROMFLAG", cfg.IndexName)
	assert.Equal(t, 4, cfg.Nbits)
	assert.Equal(t, 64, cfg.IndexingBatchSize)
}

func TestExperimentConfigInvalid(t *testing.T) {
	zero := 0
	r := &RunCmd{Nbits: &zero}
	_, err := r.experimentConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid experiment config")
}

func TestRunCmdDryRun(t *testing.T) {
	_, parser := newTestParser(t)
	kctx, err := parser.Parse([]string{"run", "--dry-run", "--use-gpu"})
	require.NoError(t, err)

	orig := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	require.NoError(t, kctx.Run(discardContext()))

	w.Close()
	os.Stderr = orig
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	line := string(out)
	assert.True(t, strings.HasPrefix(line, "+ python examples/example_use_flmr.py --use_gpu"), line)
	assert.Contains(t, line, "--num_ROIs 9")
}

func TestExtractCmd(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.zip")
	writeTestZip(t, archive, "payload.txt", "payload")
	dst := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dst, 0755))

	cli, parser := newTestParser(t)
	kctx, err := parser.Parse([]string{"extract", archive, dst})
	require.NoError(t, err)
	assert.Equal(t, int64(100000), cli.Extract.MaxFiles)

	require.NoError(t, kctx.Run(discardContext()))
	assert.FileExists(t, filepath.Join(dst, "payload.txt"))
}

func TestFetchCmdSkipDownload(t *testing.T) {
	base := t.TempDir()
	writeTestZip(t, filepath.Join(base, "data.zip"), "payload.txt", "payload")

	_, parser := newTestParser(t)
	kctx, err := parser.Parse([]string{"fetch", "--skip-download", "--local-dir", base})
	require.NoError(t, err)

	// silence the progress lines
	orig := os.Stdout
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	os.Stdout = devnull
	defer func() {
		os.Stdout = orig
		devnull.Close()
	}()

	require.NoError(t, kctx.Run(discardContext()))
	assert.FileExists(t, filepath.Join(base, "payload.txt"))
}

func writeTestZip(t *testing.T, path, name, content string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}
