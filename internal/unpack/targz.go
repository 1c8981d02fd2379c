package unpack

import (
	"context"
	"os"

	"github.com/klauspost/compress/gzip"
)

// unpackTarGz decompresses the gzip stream from src and extracts the
// contained tar archive to dst. If the decompressed stream is not a tar
// archive, [ErrNoTarPayload] is returned.
func unpackTarGz(ctx context.Context, src *os.File, dst string, cfg *Config, rep *Report) error {
	// log extraction
	cfg.Logger().Info("extracting tar.gz", "src", src.Name())

	// limit input size
	limitedReader := newLimitErrorReader(src, cfg.MaxInputSize())
	defer captureInputSize(rep, limitedReader)

	// start decompression
	decompressedStream, err := gzip.NewReader(limitedReader)
	if err != nil {
		return handleError(cfg, rep, "cannot start decompression", err)
	}
	defer func() {
		decompressedStream.Close()
	}()

	// check if context is canceled
	if err := ctx.Err(); err != nil {
		return handleError(cfg, rep, "context error", err)
	}

	// peek the uncompressed header
	headerReader, err := newHeaderReader(decompressedStream, maxHeaderLength)
	if err != nil {
		return handleError(cfg, rep, "cannot read uncompressed header", err)
	}

	// check for tar header
	if !IsTar(headerReader.PeekHeader()) {
		return handleError(cfg, rep, "cannot unpack tar.gz", ErrNoTarPayload)
	}

	return processTar(ctx, headerReader, dst, cfg, rep)
}
