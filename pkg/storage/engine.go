package storage

import (
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

// Formats understood by ByName and FormatOf.
const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// FormatOf returns the engine format for a path or glob pattern, judged by
// its extension after stripping a .zst or .gz suffix. It returns "" for
// unknown extensions.
func FormatOf(path string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(path, ".zst"), ".gz")
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json", ".jsonl":
		return FormatJSON
	case ".parquet":
		return FormatParquet
	default:
		return ""
	}
}

// ByName returns the engine for a format name.
func ByName(format string, logger log.Logger) (Engine, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "jsonl":
		return NewJSONEngine(logger), nil
	case FormatParquet:
		return NewParquetEngine(logger), nil
	default:
		return nil, errors.Errorf("unknown format %q", format)
	}
}

// ForFiles picks the engine from the extensions of paths. All paths must
// share one format.
func ForFiles(paths []string, logger log.Logger) (Engine, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	format := ""
	for _, path := range paths {
		f := FormatOf(path)
		if f == "" {
			return nil, errors.Errorf("cannot tell the format of %s", path)
		}
		if format != "" && f != format {
			return nil, errors.Errorf("mixed formats: %s is %s, expected %s", path, f, format)
		}
		format = f
	}
	return ByName(format, logger)
}

// Open opens a stream over paths with the engine named by format, or the
// one matching the file extensions when format is auto or empty.
func Open(format, stream string, paths []string, logger log.Logger) (Stream, error) {
	var (
		engine Engine
		err    error
	)
	if format == "" || format == FormatAuto {
		engine, err = ForFiles(paths, logger)
	} else {
		engine, err = ByName(format, logger)
	}
	if err != nil {
		return nil, err
	}

	s, err := engine.OpenStream(stream)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := s.AddFile(path); err != nil {
			s.Detach()
			return nil, err
		}
	}
	return s, nil
}
