package unpack

import (
	"context"
	"encoding/json"
	"time"
)

// now is a function point that returns time.Now to the caller.
var now = time.Now

// Report is a struct type that holds all telemetry data of an extraction
type Report struct {
	// ExtractedDirs is the number of extracted directories
	ExtractedDirs int64

	// ExtractionDuration is the time it took to extract the archive
	ExtractionDuration time.Duration

	// ExtractionErrors is the number of errors during extraction
	ExtractionErrors int64

	// ExtractedFiles is the number of extracted files
	ExtractedFiles int64

	// ExtractionSize is the size of the extracted files
	ExtractionSize int64

	// ExtractedSymlinks is the number of extracted symlinks
	ExtractedSymlinks int64

	// ExtractedKind is the kind of the archive
	ExtractedKind string

	// InputSize is the size of the input
	InputSize int64

	// LastExtractionError is the last error during extraction
	LastExtractionError error

	// UnsupportedFiles is the number of skipped unsupported files
	UnsupportedFiles int64

	// LastUnsupportedFile is the last skipped unsupported file
	LastUnsupportedFile string
}

// String returns a string representation of [Report].
func (r Report) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (r Report) MarshalJSON() ([]byte, error) {
	var lastError string
	if r.LastExtractionError != nil {
		lastError = r.LastExtractionError.Error()
	}

	type Alias Report
	return json.Marshal(&struct {
		LastExtractionError string `json:"LastExtractionError"`
		*Alias
	}{
		LastExtractionError: lastError,
		Alias:               (*Alias)(&r),
	})
}

// TelemetryHook is a function type that performs operations on [Report]
// after an extraction has finished which can be used to submit the [Report]
// to a telemetry service, for example.
type TelemetryHook func(context.Context, *Report)

// captureExtractionDuration captures the duration of the extraction
func captureExtractionDuration(r *Report, start time.Time) {
	stop := now()
	r.ExtractionDuration = stop.Sub(start)
}

// captureInputSize captures the input size of the extraction
func captureInputSize(r *Report, ler *limitErrorReader) {
	r.InputSize = int64(ler.ReadBytes())
}
