package unpack

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// TestUnpack checks the suffix based strategy dispatch
func TestUnpack(t *testing.T) {

	cases := []struct {
		name              string
		testFileGenerator func(*testing.T, string) string
		expectError       bool
	}{
		{
			name:              "dispatch zip",
			testFileGenerator: createTestZipNormal,
			expectError:       false,
		},
		{
			name:              "dispatch tar",
			testFileGenerator: createTestTarNormal,
			expectError:       false,
		},
		{
			name:              "dispatch tar.gz",
			testFileGenerator: createTestTarGzNormal,
			expectError:       false,
		},
		{
			name:              "no dispatch for unrecognized suffix",
			testFileGenerator: createTestTextFile,
			expectError:       true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testDir := t.TempDir()

			err := Unpack(context.Background(), tc.testFileGenerator(t, testDir), testDir, NewConfig())
			got := err != nil
			if got != tc.expectError {
				t.Errorf("test case failed: %s\n%v", tc.name, err)
			}
		})
	}
}

// TestUnpackUnsupportedArchive checks that unmatched filenames return the
// sentinel error and produce no extraction work.
func TestUnpackUnsupportedArchive(t *testing.T) {
	testDir := t.TempDir()
	src := createTestTextFile(t, testDir)

	err := Unpack(context.Background(), src, testDir, NewConfig())
	if !errors.Is(err, ErrUnsupportedArchive) {
		t.Errorf("expected ErrUnsupportedArchive, got %v", err)
	}
}

// TestUnpackHeaderMismatch checks that a recognized suffix with foreign
// content is rejected before extraction starts.
func TestUnpackHeaderMismatch(t *testing.T) {
	testDir := t.TempDir()

	// tar content behind a zip suffix
	src := createTestTarNormal(t, testDir)
	renamed := filepath.Join(testDir, "NotRealZip.zip")
	if err := os.Rename(src, renamed); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	err := Unpack(context.Background(), renamed, testDir, NewConfig())
	if !errors.Is(err, ErrUnsupportedArchive) {
		t.Errorf("expected ErrUnsupportedArchive for header mismatch, got %v", err)
	}
}

func TestUnpackZip(t *testing.T) {

	// generate canceled context
	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name              string
		testFileGenerator func(*testing.T, string) string
		opts              []ConfigOption
		ctx               context.Context
		expectError       bool
	}{
		{
			name:              "normal zip",
			testFileGenerator: createTestZipNormal,
			expectError:       false,
		},
		{
			name:              "normal zip with 5 files",
			testFileGenerator: createTestZipFiveFiles,
			expectError:       false,
		},
		{
			name:              "normal zip with 5 files, but file limit",
			testFileGenerator: createTestZipFiveFiles,
			opts:              []ConfigOption{WithMaxFiles(1)},
			expectError:       true,
		},
		{
			name:              "normal zip, but limited extraction size of 1 byte",
			testFileGenerator: createTestZipNormal,
			opts:              []ConfigOption{WithMaxExtractionSize(1)},
			expectError:       true,
		},
		{
			name:              "normal zip, but limited input size",
			testFileGenerator: createTestZipNormal,
			opts:              []ConfigOption{WithMaxInputSize(10)},
			expectError:       true,
		},
		{
			name:              "normal zip, but context canceled",
			testFileGenerator: createTestZipNormal,
			ctx:               canceledCtx,
			expectError:       true,
		},
		{
			name:              "malicious zip with path traversal",
			testFileGenerator: createTestZipPathTraversal,
			expectError:       true,
		},
		{
			name:              "malicious zip with path traversal, but continue on error",
			testFileGenerator: createTestZipPathTraversal,
			opts:              []ConfigOption{WithContinueOnError(true)},
			expectError:       false,
		},
		{
			name:              "normal zip with symlink",
			testFileGenerator: createTestZipWithSymlink,
			expectError:       false,
		},
		{
			name:              "normal zip with symlink, but symlinks are denied",
			testFileGenerator: createTestZipWithSymlink,
			opts:              []ConfigOption{WithDenySymlinkExtraction(true)},
			expectError:       true,
		},
		{
			name:              "normal zip with symlink, but symlinks are denied, but continue on unsupported files",
			testFileGenerator: createTestZipWithSymlink,
			opts:              []ConfigOption{WithDenySymlinkExtraction(true), WithContinueOnUnsupportedFiles(true)},
			expectError:       false,
		},
		{
			name:              "malicious zip with symlink target containing path traversal",
			testFileGenerator: createTestZipWithSymlinkTargetPathTraversal,
			expectError:       true,
		},
		{
			name:              "malicious zip with symlink target referring absolute path",
			testFileGenerator: createTestZipWithSymlinkAbsolutePath,
			expectError:       true,
		},
		{
			name:              "malicious zip with symlink name path traversal",
			testFileGenerator: createTestZipWithSymlinkPathTraversalName,
			expectError:       true,
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testDir := t.TempDir()

			if tc.ctx == nil {
				tc.ctx = context.Background()
			}

			err := Unpack(tc.ctx, tc.testFileGenerator(t, testDir), testDir, NewConfig(tc.opts...))
			got := err != nil
			if got != tc.expectError {
				t.Errorf("test case %d failed: %s\n%v", i, tc.name, err)
			}
		})
	}
}

func TestUnpackTar(t *testing.T) {

	cases := []struct {
		name              string
		testFileGenerator func(*testing.T, string) string
		opts              []ConfigOption
		expectError       bool
	}{
		{
			name:              "normal tar",
			testFileGenerator: createTestTarNormal,
			expectError:       false,
		},
		{
			name:              "normal tar with 5 files",
			testFileGenerator: createTestTarFiveFiles,
			expectError:       false,
		},
		{
			name:              "normal tar with 5 files, but file limit",
			testFileGenerator: createTestTarFiveFiles,
			opts:              []ConfigOption{WithMaxFiles(4)},
			expectError:       true,
		},
		{
			name:              "normal tar, but extraction size exceeded",
			testFileGenerator: createTestTarNormal,
			opts:              []ConfigOption{WithMaxExtractionSize(1)},
			expectError:       true,
		},
		{
			name:              "malicious tar with path traversal",
			testFileGenerator: createTestTarWithPathTraversalInFile,
			expectError:       true,
		},
		{
			name:              "malicious tar with path traversal, but continue on error",
			testFileGenerator: createTestTarWithPathTraversalInFile,
			opts:              []ConfigOption{WithContinueOnError(true)},
			expectError:       false,
		},
		{
			name:              "normal tar with symlink",
			testFileGenerator: createTestTarWithSymlink,
			expectError:       false,
		},
		{
			name:              "normal tar with symlink, but symlinks are denied",
			testFileGenerator: createTestTarWithSymlink,
			opts:              []ConfigOption{WithDenySymlinkExtraction(true)},
			expectError:       true,
		},
		{
			name:              "normal tar with symlink, but symlinks are denied, but continue on unsupported files",
			testFileGenerator: createTestTarWithSymlink,
			opts:              []ConfigOption{WithDenySymlinkExtraction(true), WithContinueOnUnsupportedFiles(true)},
			expectError:       false,
		},
		{
			name:              "malicious tar with absolute path in symlink",
			testFileGenerator: createTestTarWithAbsolutePathSymlink,
			expectError:       true,
		},
		{
			name:              "malicious tar with symlink name path traversal",
			testFileGenerator: createTestTarWithTraversalInSymlinkName,
			expectError:       true,
		},
		{
			name:              "malicious tar with FIFO filetype",
			testFileGenerator: createTestTarWithFifo,
			expectError:       true,
		},
		{
			name:              "malicious tar with FIFO filetype, but continue on unsupported files",
			testFileGenerator: createTestTarWithFifo,
			opts:              []ConfigOption{WithContinueOnUnsupportedFiles(true)},
			expectError:       false,
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testDir := t.TempDir()

			err := Unpack(context.Background(), tc.testFileGenerator(t, testDir), testDir, NewConfig(tc.opts...))
			got := err != nil
			if got != tc.expectError {
				t.Errorf("test case %d failed: %s\n%v", i, tc.name, err)
			}
		})
	}
}

func TestUnpackTarGz(t *testing.T) {

	cases := []struct {
		name              string
		testFileGenerator func(*testing.T, string) string
		opts              []ConfigOption
		expectError       bool
	}{
		{
			name:              "normal tar.gz",
			testFileGenerator: createTestTarGzNormal,
			expectError:       false,
		},
		{
			name:              "plain tar behind tar.gz suffix",
			testFileGenerator: createTestTarGzWithPlainTarContent,
			expectError:       true,
		},
		{
			name:              "gzip stream without tar payload",
			testFileGenerator: createTestTarGzWithoutTarPayload,
			expectError:       true,
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testDir := t.TempDir()

			err := Unpack(context.Background(), tc.testFileGenerator(t, testDir), testDir, NewConfig(tc.opts...))
			got := err != nil
			if got != tc.expectError {
				t.Errorf("test case %d failed: %s\n%v", i, tc.name, err)
			}
		})
	}
}

// TestUnpackTarGzNoTarPayload pins the sentinel error for gzip streams that
// do not contain a tar archive.
func TestUnpackTarGzNoTarPayload(t *testing.T) {
	testDir := t.TempDir()
	src := createTestTarGzWithoutTarPayload(t, testDir)

	err := Unpack(context.Background(), src, testDir, NewConfig())
	if !errors.Is(err, ErrNoTarPayload) {
		t.Errorf("expected ErrNoTarPayload, got %v", err)
	}
}

// TestUnpackContents checks that extracted files land below dst with their
// content intact, including implicit parent directories.
func TestUnpackContents(t *testing.T) {
	testDir := t.TempDir()
	dst := filepath.Join(testDir, "out")
	if err := os.Mkdir(dst, 0750); err != nil {
		t.Fatalf("cannot create destination: %v", err)
	}

	src := createTestZipNested(t, testDir)
	if err := Unpack(context.Background(), src, dst, NewConfig()); err != nil {
		t.Fatalf("unpack failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dst, "sub", "test"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(content) != "foobar content" {
		t.Errorf("unexpected content: %q", string(content))
	}
}

// TestUnpackOverwrite checks the overwrite gate on repeated extraction.
func TestUnpackOverwrite(t *testing.T) {
	testDir := t.TempDir()
	src := createTestZipNormal(t, testDir)

	// first extraction
	if err := Unpack(context.Background(), src, testDir, NewConfig()); err != nil {
		t.Fatalf("first unpack failed: %v", err)
	}

	// second extraction collides
	err := Unpack(context.Background(), src, testDir, NewConfig())
	if !errors.Is(err, ErrFileExists) {
		t.Errorf("expected ErrFileExists, got %v", err)
	}

	// second extraction with overwrite succeeds
	if err := Unpack(context.Background(), src, testDir, NewConfig(WithOverwrite(true))); err != nil {
		t.Errorf("unpack with overwrite failed: %v", err)
	}
}

// TestUnpackTelemetry checks the extraction report handed to the hook.
func TestUnpackTelemetry(t *testing.T) {
	testDir := t.TempDir()
	src := createTestTarNormal(t, testDir)

	var captured *Report
	hook := func(ctx context.Context, r *Report) {
		captured = r
	}

	if err := Unpack(context.Background(), src, testDir, NewConfig(WithTelemetryHook(hook))); err != nil {
		t.Fatalf("unpack failed: %v", err)
	}

	if captured == nil {
		t.Fatalf("telemetry hook was not called")
	}
	if captured.ExtractedKind != "tar" {
		t.Errorf("ExtractedKind = %q, want %q", captured.ExtractedKind, "tar")
	}
	if captured.ExtractedFiles != 1 {
		t.Errorf("ExtractedFiles = %d, want 1", captured.ExtractedFiles)
	}
	if captured.ExtractedDirs != 1 {
		t.Errorf("ExtractedDirs = %d, want 1", captured.ExtractedDirs)
	}
	if captured.InputSize <= 0 {
		t.Errorf("InputSize = %d, want > 0", captured.InputSize)
	}
	if captured.ExtractionErrors != 0 {
		t.Errorf("ExtractionErrors = %d, want 0", captured.ExtractionErrors)
	}
}

// createTestZip prepares a zip archive at path and returns its writer
func createTestZip(t *testing.T, path string) *zip.Writer {
	archive, err := os.Create(path)
	if err != nil {
		t.Fatalf("cannot create archive: %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	return zip.NewWriter(archive)
}

// addZipFile adds a regular file with content to the zip archive
func addZipFile(t *testing.T, zw *zip.Writer, name string, content string) {
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("cannot create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("cannot write zip entry: %v", err)
	}
}

// addZipSymlink adds a symlink to the zip archive. The link target is
// stored as the file content.
func addZipSymlink(t *testing.T, zw *zip.Writer, name string, linkTarget string) {
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	header.SetMode(fs.ModeSymlink | 0755)

	w, err := zw.CreateHeader(header)
	if err != nil {
		t.Fatalf("cannot create zip symlink entry: %v", err)
	}
	if _, err := w.Write([]byte(linkTarget)); err != nil {
		t.Fatalf("cannot write zip symlink entry: %v", err)
	}
}

func createTestZipNormal(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "ZipNormal.zip")

	zw := createTestZip(t, targetFile)
	addZipFile(t, zw, "test", "foobar content")
	zw.Close()

	return targetFile
}

func createTestZipNested(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "ZipNested.zip")

	zw := createTestZip(t, targetFile)
	addZipFile(t, zw, "sub/test", "foobar content")
	zw.Close()

	return targetFile
}

func createTestZipFiveFiles(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "ZipFiveFiles.zip")

	zw := createTestZip(t, targetFile)
	for i := 0; i < 5; i++ {
		addZipFile(t, zw, fmt.Sprintf("test%d", i), "foobar content")
	}
	zw.Close()

	return targetFile
}

func createTestZipPathTraversal(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "ZipTraversal.zip")

	zw := createTestZip(t, targetFile)
	addZipFile(t, zw, "../test", "foobar content")
	zw.Close()

	return targetFile
}

func createTestZipWithSymlink(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "ZipWithSymlink.zip")

	zw := createTestZip(t, targetFile)
	addZipSymlink(t, zw, "legitLinkName", "legitLinkTarget")
	zw.Close()

	return targetFile
}

func createTestZipWithSymlinkPathTraversalName(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "ZipWithSymlinkPathTraversalName.zip")

	zw := createTestZip(t, targetFile)
	addZipSymlink(t, zw, "../maliciousLink", "nirvana")
	zw.Close()

	return targetFile
}

func createTestZipWithSymlinkAbsolutePath(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "ZipWithSymlinkTargetAbsolutePath.zip")

	zw := createTestZip(t, targetFile)
	addZipSymlink(t, zw, "maliciousLink", "/etc/passwd")
	zw.Close()

	return targetFile
}

func createTestZipWithSymlinkTargetPathTraversal(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "ZipWithSymlinkTargetPathTraversal.zip")

	zw := createTestZip(t, targetFile)
	addZipSymlink(t, zw, "maliciousLink", "../maliciousLinkTarget")
	zw.Close()

	return targetFile
}

// createTestTar prepares a tar archive at path and returns its writer
func createTestTar(t *testing.T, path string) *tar.Writer {
	archive, err := os.Create(path)
	if err != nil {
		t.Fatalf("cannot create archive: %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	return tar.NewWriter(archive)
}

// addTarFile adds a regular file with content to the tar archive
func addTarFile(t *testing.T, tw *tar.Writer, name string, content string) {
	header := &tar.Header{
		Name:     name,
		Mode:     0644,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(header); err != nil {
		t.Fatalf("cannot write tar header: %v", err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatalf("cannot write tar entry: %v", err)
	}
}

// addTarDir adds a directory to the tar archive
func addTarDir(t *testing.T, tw *tar.Writer, name string) {
	header := &tar.Header{
		Name:     name,
		Mode:     0755,
		Typeflag: tar.TypeDir,
	}
	if err := tw.WriteHeader(header); err != nil {
		t.Fatalf("cannot write tar header: %v", err)
	}
}

// addTarSymlink adds a symlink to the tar archive
func addTarSymlink(t *testing.T, tw *tar.Writer, name string, linkTarget string) {
	header := &tar.Header{
		Name:     name,
		Linkname: linkTarget,
		Mode:     0777,
		Typeflag: tar.TypeSymlink,
	}
	if err := tw.WriteHeader(header); err != nil {
		t.Fatalf("cannot write tar header: %v", err)
	}
}

// addTarFifo adds a FIFO to the tar archive
func addTarFifo(t *testing.T, tw *tar.Writer, name string) {
	header := &tar.Header{
		Name:     name,
		Mode:     0644,
		Typeflag: tar.TypeFifo,
	}
	if err := tw.WriteHeader(header); err != nil {
		t.Fatalf("cannot write tar header: %v", err)
	}
}

func createTestTarNormal(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarNormal.tar")

	tw := createTestTar(t, targetFile)
	addTarDir(t, tw, "emptyDir/")
	addTarFile(t, tw, "test", "foobar content")
	tw.Close()

	return targetFile
}

func createTestTarFiveFiles(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarFiveFiles.tar")

	tw := createTestTar(t, targetFile)
	for i := 0; i < 5; i++ {
		addTarFile(t, tw, fmt.Sprintf("test%d", i), "foobar content")
	}
	tw.Close()

	return targetFile
}

func createTestTarWithPathTraversalInFile(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarWithPathTraversalInFile.tar")

	tw := createTestTar(t, targetFile)
	addTarFile(t, tw, "../test", "foobar content")
	tw.Close()

	return targetFile
}

func createTestTarWithSymlink(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarWithSymlink.tar")

	tw := createTestTar(t, targetFile)
	addTarSymlink(t, tw, "testLink", "testTarget")
	tw.Close()

	return targetFile
}

func createTestTarWithAbsolutePathSymlink(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarWithAbsolutePathSymlink.tar")

	tw := createTestTar(t, targetFile)
	addTarSymlink(t, tw, "testLink", "/tmp/test")
	tw.Close()

	return targetFile
}

func createTestTarWithTraversalInSymlinkName(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarWithTraversalInSymlinkName.tar")

	tw := createTestTar(t, targetFile)
	addTarSymlink(t, tw, "../testLink", "testTarget")
	tw.Close()

	return targetFile
}

func createTestTarWithFifo(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarWithFifo.tar")

	tw := createTestTar(t, targetFile)
	addTarFifo(t, tw, "testFifo")
	tw.Close()

	return targetFile
}

func createTestTarGzNormal(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarGzNormal.tar.gz")

	archive, err := os.Create(targetFile)
	if err != nil {
		t.Fatalf("cannot create archive: %v", err)
	}
	defer archive.Close()

	gzw := gzip.NewWriter(archive)
	tw := tar.NewWriter(gzw)
	addTarFile(t, tw, "test", "foobar content")
	tw.Close()
	gzw.Close()

	return targetFile
}

func createTestTarGzWithPlainTarContent(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarGzPlainTar.tar.gz")

	// tar content without gzip compression
	tw := createTestTar(t, targetFile)
	addTarFile(t, tw, "test", "foobar content")
	tw.Close()

	return targetFile
}

func createTestTarGzWithoutTarPayload(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "TarGzNoTarPayload.tar.gz")

	archive, err := os.Create(targetFile)
	if err != nil {
		t.Fatalf("cannot create archive: %v", err)
	}
	defer archive.Close()

	gzw := gzip.NewWriter(archive)
	if _, err := gzw.Write([]byte("plain text, no tar header")); err != nil {
		t.Fatalf("cannot write gzip content: %v", err)
	}
	gzw.Close()

	return targetFile
}

func createTestTextFile(t *testing.T, dstDir string) string {
	targetFile := filepath.Join(dstDir, "readme.txt")

	if err := os.WriteFile(targetFile, []byte("no archive"), 0644); err != nil {
		t.Fatalf("cannot create text file: %v", err)
	}

	return targetFile
}
