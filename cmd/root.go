package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/bisegni/jchain/pkg/chain"
	"github.com/bisegni/jchain/pkg/storage"
)

var (
	StreamName string
	Format     string
	Columns    []Column
	LogLevel   string

	logger log.Logger = log.NewNopLogger()
)

var rootCmd = &cobra.Command{
	Use:   "jchain",
	Short: "Read typed columns out of chained files",
	Long: `jchain reads a named record stream spread over several files as one
ordered sequence of rows, decoding only the columns you declare.

Files are chained in the order given; glob patterns expand in lexical order.
JSON, JSONL (optionally .zst or .gz compressed) and Parquet files are
supported.

Columns are declared as name:type, for example -c x:int64 -c pos:float64[3].
Nested JSON members and Parquet groups use dotted names.

Examples:
  jchain count run1.jsonl run2.jsonl
  jchain stats -t events -c energy:float64 'data/*.parquet'
  jchain scan -c x:int64 -c tag:string --where "x > 3 AND tag = 'mu'" run*.jsonl
  jchain browse -c x:int64 run1.jsonl`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cmd.ErrOrStderr(), LogLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&StreamName, "stream", "t", "data", "Name of the record stream inside each file")
	rootCmd.PersistentFlags().StringVarP(&Format, "format", "f", storage.FormatAuto, "File format: auto, json or parquet")
	rootCmd.PersistentFlags().VarP(&columnList{&Columns}, "column", "c", "Column to read as name:type (repeatable)")
	rootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(browseCmd)
}

func newLogger(w io.Writer, lvl string) (log.Logger, error) {
	var allow level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "warn", "warning":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(l, allow), nil
}

// openStream opens the stream named by --stream over files.
func openStream(files []string) (storage.Stream, error) {
	return storage.Open(Format, StreamName, files, logger)
}

// openReader opens a chain reader over files with the columns declared by
// --column.
func openReader(files []string, opts ...chain.Option) (*chain.Reader, []Column, error) {
	columns := Columns
	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("declare at least one column with --column name:type")
	}

	s, err := openStream(files)
	if err != nil {
		return nil, nil, err
	}
	decls := make([]chain.Decl, len(columns))
	for i, c := range columns {
		decls[i] = c.Decl()
	}

	opts = append([]chain.Option{chain.WithLogger(logger)}, opts...)
	r, err := chain.FromStream(s, decls, opts...)
	if err != nil {
		return nil, nil, err
	}
	level.Debug(logger).Log("msg", "opened reader", "reader", r.ID(), "files", len(r.Files()), "rows", r.TotalRows())
	return r, columns, nil
}
