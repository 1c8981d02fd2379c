package unpack

import (
	"bytes"
	"sort"
	"strings"
)

// Kind identifies one of the recognized archive formats. The set is closed:
// dataset trees ship zip, tar and gzip-compressed tar archives, and nothing
// else is unpacked.
type Kind string

const (
	KindZip   Kind = "zip"
	KindTar   Kind = "tar"
	KindTarGz Kind = "tar.gz"
)

// suffixes maps each kind to the filename suffix that selects it.
var suffixes = map[Kind]string{
	KindZip:   ".zip",
	KindTar:   ".tar",
	KindTarGz: ".tar.gz",
}

// String returns the kind name as used in logs and reports.
func (k Kind) String() string {
	return string(k)
}

// Suffix returns the filename suffix that selects the kind.
func (k Kind) Suffix() string {
	return suffixes[k]
}

// Kinds returns all recognized kinds in stable order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(suffixes))
	for k := range suffixes {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Classify determines the archive kind of name with longest suffix match.
// The match is case-insensitive and purely lexical, the file is not opened.
// The second return value is false if name matches no recognized suffix,
// which means the file is left alone.
func Classify(name string) (Kind, bool) {
	var (
		match     Kind
		maxSuffix int
		found     bool
	)

	lower := strings.ToLower(name)
	for kind, suffix := range suffixes {
		if !strings.HasSuffix(lower, suffix) {
			continue
		}

		// longest suffix wins, so x.tar.gz never classifies as tar
		if len(suffix) > maxSuffix {
			maxSuffix = len(suffix)
			match = kind
			found = true
		}
	}

	return match, found
}

// offsetTar is the offset where the magic bytes are located in a tar header.
const offsetTar = 257

var (
	// magicBytesZip contains the magic bytes for a zip archive.
	magicBytesZip = [][]byte{
		{0x50, 0x4B, 0x03, 0x04},
	}

	// magicBytesTar contains the magic bytes for the tar header variants.
	magicBytesTar = [][]byte{
		[]byte("ustar\x00tar\x00"),
		[]byte("ustar\x00"),
		[]byte("ustar  \x00"),
	}

	// magicBytesGZip contains the magic bytes for a gzip stream.
	magicBytesGZip = [][]byte{
		{0x1f, 0x8b},
	}
)

// IsZip checks if data matches the magic bytes for zip archives.
func IsZip(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesZip)
}

// IsTar checks if data matches the magic bytes for tar archives.
func IsTar(data []byte) bool {
	return matchesMagicBytes(data, offsetTar, magicBytesTar)
}

// IsGZip checks if data matches the magic bytes for gzip streams.
func IsGZip(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesGZip)
}

// matchesMagicBytes checks data at offset against all candidate magic bytes
// until a match is found.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	for _, mb := range magicBytes {
		// check if data is long enough
		if offset+len(mb) > len(data) {
			continue
		}

		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}

	return false
}
