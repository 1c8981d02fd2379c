package unpack

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// archiveWalker is an interface that represents a file walker in an archive
type archiveWalker interface {
	Kind() Kind
	Next() (archiveEntry, error)
}

// archiveEntry is an interface that represents a file in an archive
type archiveEntry interface {
	IsDir() bool
	IsRegular() bool
	IsSymlink() bool
	Linkname() string
	Mode() fs.FileMode
	Name() string
	Open() (io.ReadCloser, error)
	Size() int64
	Type() fs.FileMode
}

// noopReaderCloser is a struct that implements the io.ReadCloser interface
// with a no-op Close method.
type noopReaderCloser struct {
	io.Reader
}

// Close implements the io.Closer interface with a no-op.
func (n noopReaderCloser) Close() error {
	return nil
}

// unsupportedFile returns an [ErrUnsupportedFile] error that names the
// affected archive entry.
func unsupportedFile(name string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
}

// handleError increases the error counter, sets the latest error and
// decides if extraction should continue.
func handleError(cfg *Config, rep *Report, msg string, err error) error {
	// increase error counter and set error
	rep.ExtractionErrors++
	rep.LastExtractionError = fmt.Errorf("%s: %w", msg, err)

	// do not end on error
	if cfg.ContinueOnError() {
		cfg.Logger().Error(msg, "error", err)
		return nil
	}

	// end extraction on error
	return rep.LastExtractionError
}

// runExtraction reads entries from src and extracts them to dst, while it
// checks ctx for cancellation between entries. Telemetry of the extraction
// is collected in rep.
func runExtraction(ctx context.Context, src archiveWalker, dst string, cfg *Config, rep *Report) error {
	// check if dst needs to be created
	if cfg.CreateDestination() {
		if err := createDir(dst, ".", cfg.CustomCreateDirMode(), cfg); err != nil {
			return handleError(cfg, rep, "cannot create destination", err)
		}
	}

	// check if dst exist
	if _, err := os.Lstat(dst); err != nil {
		return handleError(cfg, rep, "destination does not exist", err)
	}

	// start extraction
	cfg.Logger().Info("start extraction", "kind", src.Kind())
	var fileCounter int64
	var extractedBytes int64

	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return err
		}

		// get next file
		ae, err := src.Next()

		switch {

		// if no more files are found exit loop
		case err == io.EOF:
			// extraction finished
			return nil

		// return any other error
		case err != nil:
			return handleError(cfg, rep, "error reading archive", err)

		// skip nil headers
		case ae == nil:
			continue
		}

		// check if maximum of files is exceeded
		fileCounter++
		if err := cfg.CheckMaxFiles(fileCounter); err != nil {
			return handleError(cfg, rep, "max files check failed", err)
		}

		cfg.Logger().Debug("extract", "name", ae.Name())
		switch {

		// if its a dir and it doesn't exist create it
		case ae.IsDir():
			if err := createDir(dst, ae.Name(), ae.Mode().Perm(), cfg); err != nil {
				if err := handleError(cfg, rep, "failed to create directory", err); err != nil {
					return err
				}

				// do not end on error
				continue
			}

			// store telemetry and continue
			rep.ExtractedDirs++
			continue

		// if it's a file create it
		case ae.IsRegular():

			// check extraction size
			if err := cfg.CheckExtractionSize(extractedBytes + ae.Size()); err != nil {
				return handleError(cfg, rep, "max extraction size exceeded", err)
			}

			// open file in archive
			fin, err := ae.Open()
			if err != nil {
				return handleError(cfg, rep, "failed to open file", err)
			}

			// create file
			writtenBytes, err := createFile(dst, ae.Name(), fin, ae.Mode(), cfg.MaxExtractionSize()-extractedBytes, cfg)
			fin.Close()
			if err != nil {
				if err := handleError(cfg, rep, "failed to create file", err); err != nil {
					return err
				}

				// do not end on error
				continue
			}
			extractedBytes = extractedBytes + writtenBytes

			// store telemetry and continue
			rep.ExtractionSize = extractedBytes
			rep.ExtractedFiles++
			continue

		// if it's a symlink create it
		case ae.IsSymlink():
			if err := createSymlink(dst, ae.Name(), ae.Linkname(), cfg); err != nil {
				// check if unsupported files should be skipped
				if errors.Is(err, ErrUnsupportedFile) && cfg.ContinueOnUnsupportedFiles() {
					cfg.Logger().Info("skipped symlink extraction", "name", ae.Name(), "target", ae.Linkname())
					rep.UnsupportedFiles++
					rep.LastUnsupportedFile = ae.Name()
					continue
				}

				if err := handleError(cfg, rep, "failed to create symlink", err); err != nil {
					return err
				}

				// do not end on error
				continue
			}

			// store telemetry and continue
			rep.ExtractedSymlinks++
			continue

		default:

			// tar specific: the pax global header carries no payload and is skipped
			if ae.Type()&tar.TypeXGlobalHeader == tar.TypeXGlobalHeader && ae.Name() == "pax_global_header" {
				continue
			}

			// check if unsupported files should be skipped
			if cfg.ContinueOnUnsupportedFiles() {
				cfg.Logger().Info("skipped unsupported file", "name", ae.Name())
				rep.UnsupportedFiles++
				rep.LastUnsupportedFile = ae.Name()
				continue
			}

			if err := handleError(cfg, rep, "cannot extract file", unsupportedFile(ae.Name())); err != nil {
				return err
			}

			// do not end on error
			continue
		}
	}
}
