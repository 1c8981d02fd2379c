// Package unpack extracts zip, tar and gzip-compressed tar archives.
//
// The archive kind is determined by filename suffix with [Classify], each
// kind has exactly one extraction strategy. Extraction is performed with
// protection against path traversal, symlink attacks and resource
// exhaustion, adjustable via [Config]. Telemetry of an extraction is
// captured in a [Report] and can be consumed with a [TelemetryHook].
package unpack

import (
	"context"
	"fmt"
	"io"
	"os"
)

// unpackFunc is a function that extracts the contents of an opened archive
// file to dst.
type unpackFunc func(ctx context.Context, src *os.File, dst string, cfg *Config, rep *Report) error

// strategy binds an archive kind to its extraction function and to the
// header check that verifies the file content before extraction starts.
type strategy struct {
	unpack      unpackFunc
	headerCheck func([]byte) bool
	magicBytes  [][]byte
	offset      int
}

// strategies is the collection of extraction strategies, one per kind.
var strategies = map[Kind]strategy{
	KindZip:   {unpack: unpackZip, headerCheck: IsZip, magicBytes: magicBytesZip},
	KindTar:   {unpack: unpackTar, headerCheck: IsTar, magicBytes: magicBytesTar, offset: offsetTar},
	KindTarGz: {unpack: unpackTarGz, headerCheck: IsGZip, magicBytes: magicBytesGZip},
}

// maxHeaderLength is the number of bytes needed to check all magic bytes
var maxHeaderLength int

// init calculates the maximum header length
func init() {
	for _, s := range strategies {
		needs := s.offset
		for _, mb := range s.magicBytes {
			if len(mb)+s.offset > needs {
				needs = len(mb) + s.offset
			}
		}
		if needs > maxHeaderLength {
			maxHeaderLength = needs
		}
	}
}

// Unpack classifies src by filename and extracts the archive contents to
// dst. Files that match no recognized suffix return
// [ErrUnsupportedArchive]. If cfg is nil, the default configuration is
// used.
func Unpack(ctx context.Context, src string, dst string, cfg *Config) error {
	kind, ok := Classify(src)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, src)
	}
	return UnpackKind(ctx, kind, src, dst, cfg)
}

// UnpackKind extracts the archive src of the provided kind to dst, without
// re-classifying the filename. Before extraction starts, the file content
// is verified against the magic bytes of the kind. If cfg is nil, the
// default configuration is used.
func UnpackKind(ctx context.Context, kind Kind, src string, dst string, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}

	s, ok := strategies[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, kind)
	}

	// prepare telemetry data collection and emit
	rep := &Report{ExtractedKind: kind.String()}
	defer cfg.TelemetryHook()(ctx, rep)
	defer captureExtractionDuration(rep, now())

	// open archive
	f, err := os.Open(src)
	if err != nil {
		return handleError(cfg, rep, "cannot open archive", err)
	}
	defer func() {
		f.Close()
	}()

	// verify the file content against the magic bytes of the kind
	header := make([]byte, maxHeaderLength)
	n, err := f.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return handleError(cfg, rep, "cannot read archive header", err)
	}
	if !s.headerCheck(header[:n]) {
		return handleError(cfg, rep, "cannot verify archive header", fmt.Errorf("missing %s magic bytes: %w", kind, ErrUnsupportedArchive))
	}

	return s.unpack(ctx, f, dst, cfg, rep)
}
