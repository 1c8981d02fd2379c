package unpack

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"os"
)

// unpackTar reads the tar archive from src and extracts the contents to dst.
func unpackTar(ctx context.Context, src *os.File, dst string, cfg *Config, rep *Report) error {
	// log extraction
	cfg.Logger().Info("extracting tar", "src", src.Name())

	// limit input size
	limitedReader := newLimitErrorReader(src, cfg.MaxInputSize())
	defer captureInputSize(rep, limitedReader)

	// start extraction
	return processTar(ctx, limitedReader, dst, cfg, rep)
}

// processTar extracts the tar archive from src to dst
func processTar(ctx context.Context, src io.Reader, dst string, cfg *Config, rep *Report) error {
	return runExtraction(ctx, &tarWalker{tr: tar.NewReader(src)}, dst, cfg, rep)
}

// tarWalker is a walker for tar files
type tarWalker struct {
	tr *tar.Reader
}

// Kind returns the archive kind for tar files
func (t *tarWalker) Kind() Kind {
	return KindTar
}

// Next returns the next entry in the tar archive
func (t *tarWalker) Next() (archiveEntry, error) {
	hdr, err := t.tr.Next()
	if err != nil {
		return nil, err
	}
	return &tarEntry{hdr, t.tr}, nil
}

// tarEntry is an entry in a tar archive
type tarEntry struct {
	hdr *tar.Header
	tr  *tar.Reader
}

// Name returns the name of the entry
func (t *tarEntry) Name() string {
	return t.hdr.Name
}

// Size returns the size of the entry
func (t *tarEntry) Size() int64 {
	return t.hdr.Size
}

// Mode returns the mode of the entry
func (t *tarEntry) Mode() fs.FileMode {
	return t.hdr.FileInfo().Mode()
}

// Linkname returns the linkname of the entry
func (t *tarEntry) Linkname() string {
	return t.hdr.Linkname
}

// IsRegular returns true if the entry is a regular file
func (t *tarEntry) IsRegular() bool {
	return t.hdr.Typeflag == tar.TypeReg
}

// IsDir returns true if the entry is a directory
func (t *tarEntry) IsDir() bool {
	return t.hdr.Typeflag == tar.TypeDir
}

// IsSymlink returns true if the entry is a symlink
func (t *tarEntry) IsSymlink() bool {
	return t.hdr.Typeflag == tar.TypeSymlink
}

// Open returns a reader for the entry
func (t *tarEntry) Open() (io.ReadCloser, error) {
	return noopReaderCloser{t.tr}, nil
}

// Type returns the type of the entry
func (t *tarEntry) Type() fs.FileMode {
	return fs.FileMode(t.hdr.Typeflag)
}
