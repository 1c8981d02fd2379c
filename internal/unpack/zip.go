package unpack

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// unpackZip reads the zip archive from src and extracts the contents to dst.
func unpackZip(ctx context.Context, src *os.File, dst string, cfg *Config, rep *Report) error {
	// log extraction
	cfg.Logger().Info("extracting zip", "src", src.Name())

	// get size of input and check if it exceeds maximum input size
	stat, err := src.Stat()
	if err != nil {
		return handleError(cfg, rep, "cannot stat archive", err)
	}
	size := stat.Size()
	rep.InputSize = size
	if cfg.MaxInputSize() != -1 && size > cfg.MaxInputSize() {
		return handleError(cfg, rep, "cannot unpack zip", ErrMaxInputSizeExceeded)
	}

	// create zip reader and extract
	reader, err := zip.NewReader(src, size)
	if err != nil {
		return handleError(cfg, rep, "cannot create zip reader", err)
	}
	return runExtraction(ctx, &zipWalker{zr: reader}, dst, cfg, rep)
}

// zipWalker is a walker for zip files
type zipWalker struct {
	zr *zip.Reader
	fp int
}

// Kind returns the archive kind for zip files
func (z zipWalker) Kind() Kind {
	return KindZip
}

// Next returns the next entry in the zip archive
func (z *zipWalker) Next() (archiveEntry, error) {
	if z.fp >= len(z.zr.File) {
		return nil, io.EOF
	}
	defer func() { z.fp++ }()
	return &zipEntry{z.zr.File[z.fp]}, nil
}

// zipEntry is an entry in a zip archive
type zipEntry struct {
	zf *zip.File
}

// Name returns the name of the entry
func (z *zipEntry) Name() string {
	return z.zf.FileHeader.Name
}

// Size returns the size of the entry
func (z *zipEntry) Size() int64 {
	return int64(z.zf.FileHeader.UncompressedSize64)
}

// Mode returns the mode of the entry
func (z *zipEntry) Mode() fs.FileMode {
	return z.zf.FileHeader.Mode()
}

// Linkname returns the linkname of the entry. For zip archives the link
// target is stored as the file content.
func (z *zipEntry) Linkname() string {
	rc, err := z.zf.Open()
	if err != nil {
		return ""
	}
	defer func() { rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return ""
	}
	return string(data)
}

// IsRegular returns true if the entry is a regular file
func (z *zipEntry) IsRegular() bool {
	return z.zf.FileHeader.Mode().Type() == 0
}

// IsDir returns true if the entry is a directory
func (z *zipEntry) IsDir() bool {
	return z.zf.FileHeader.Mode().Type() == fs.ModeDir
}

// IsSymlink returns true if the entry is a symlink
func (z *zipEntry) IsSymlink() bool {
	return z.zf.FileHeader.Mode().Type() == fs.ModeSymlink
}

// Open returns a reader for the entry
func (z *zipEntry) Open() (io.ReadCloser, error) {
	rc, err := z.zf.Open()
	if err != nil {
		return nil, fmt.Errorf("cannot open zip entry: %w", err)
	}
	return rc, nil
}

// Type returns the type of the entry
func (z *zipEntry) Type() fs.FileMode {
	return z.zf.FileHeader.Mode().Type()
}
