package cmd

import (
	"fmt"
	"io"

	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/bisegni/jchain/pkg/chain"
	"github.com/bisegni/jchain/pkg/database"
	"github.com/bisegni/jchain/pkg/query"
)

var (
	ScanWhere   string
	ScanFrom    int64
	ScanLimit   int64
	ScanPretty  bool
	ScanMetrics bool
)

var scanCmd = &cobra.Command{
	Use:   "scan FILE...",
	Short: "Print rows as JSON objects",
	Long: `Position the reader over a range of rows and print each row as a JSON
object with the declared columns in order.

The --where expression supports =, !=, <, <=, >, >=, CONTAINS (or ~=),
AND, OR, NOT and parentheses. A comparison against an array column matches
if any element matches.

Examples:
  jchain scan -c x:int64 -c tag:string run1.jsonl run2.jsonl
  jchain scan -c x:int64 --from 100 --limit 10 'runs/*.jsonl.zst'
  jchain scan -c e:float64 -c hits:[]int64 --where "e > 2.5 AND hits = 7" data.parquet`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&ScanWhere, "where", "w", "", "Only print rows matching this expression")
	scanCmd.Flags().Int64Var(&ScanFrom, "from", 0, "First row to read")
	scanCmd.Flags().Int64VarP(&ScanLimit, "limit", "n", -1, "Print at most this many rows (-1 for all)")
	scanCmd.Flags().BoolVar(&ScanPretty, "pretty", false, "Pretty print output")
	scanCmd.Flags().BoolVar(&ScanMetrics, "metrics", false, "Print reader metrics to stderr when done")
}

func runScan(cmd *cobra.Command, args []string) error {
	var filter query.Expression
	if ScanWhere != "" {
		expr, err := query.ParseFilter(ScanWhere)
		if err != nil {
			return fmt.Errorf("failed to parse filter: %w", err)
		}
		filter = expr
	}

	var opts []chain.Option
	reg := prometheus.NewRegistry()
	if ScanMetrics {
		opts = append(opts, chain.WithMetrics(chain.NewMetrics(reg)))
	}

	r, _, err := openReader(args, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	table := database.NewChainTable(r).Range(ScanFrom, ScanLimit)
	if filter != nil {
		table.Where(filter)
	}

	n, err := printRows(cmd.OutOrStdout(), table, ScanPretty)
	level.Info(logger).Log("msg", "scan done", "rows", n, "reader", r.ID())
	if err != nil {
		return err
	}

	if ScanMetrics {
		// close first so the buffer gauge reflects the releases
		if err := r.Close(); err != nil {
			return err
		}
		return writeMetrics(cmd.ErrOrStderr(), reg)
	}
	return nil
}

func printRows(w io.Writer, table database.Table, pretty bool) (int, error) {
	iter, err := table.Iterate()
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for iter.Next() {
		if err := writeRow(w, iter.Row(), pretty); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Error()
}

func writeRow(w io.Writer, row database.Row, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(row.Primitive(), "", "  ")
	} else {
		b, err = json.Marshal(row.Primitive())
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
