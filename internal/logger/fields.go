package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently
// across ingestion, generation, and dataset-utility log lines.
const (
	KeyPath       = "path"      // file path being read or written
	KeyTriples    = "triples"   // triple count
	KeyEntries    = "entries"   // dictionary entry count
	KeyRequested  = "requested" // requested query/triple size
	KeyActual     = "actual"    // actual size obtained
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyLine       = "line" // input line number, for parse diagnostics
)

// Path returns a slog.Attr for a file path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Triples returns a slog.Attr for a triple count.
func Triples(n int) slog.Attr {
	return slog.Int(KeyTriples, n)
}

// Entries returns a slog.Attr for a dictionary entry count.
func Entries(n int) slog.Attr {
	return slog.Int(KeyEntries, n)
}

// Requested returns a slog.Attr for a requested size.
func Requested(n int) slog.Attr {
	return slog.Int(KeyRequested, n)
}

// Actual returns a slog.Attr for an obtained size.
func Actual(n int) slog.Attr {
	return slog.Int(KeyActual, n)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Line returns a slog.Attr for an input line number.
func Line(n int) slog.Attr {
	return slog.Int(KeyLine, n)
}
