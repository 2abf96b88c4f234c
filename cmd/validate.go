package cmd

import (
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
)

var validateDeep bool

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check that the declared columns resolve",
	Long: `Resolve every declared column against the chain and report its storage
ownership. With --deep, also decode every row to catch values that do not
fit the declared types.

Examples:
  jchain validate -c x:int64 -c tag:string run1.jsonl run2.jsonl
  jchain validate --deep -c pos:float64[3] 'data/*.parquet'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDeep, "deep", false, "Decode every row")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	r, columns, err := openReader(args)
	if err != nil {
		fmt.Fprintf(out, "❌ Validation failed: %v\n", err)
		return err
	}
	defer r.Close()

	for i, c := range columns {
		fmt.Fprintf(out, "  %s: %s-owned\n", c, r.Ownership(i))
	}

	if validateDeep {
		rows := int64(0)
		for range r.Rows() {
			rows++
		}
		if err := r.Err(); err != nil {
			level.Error(logger).Log("msg", "row failed to decode", "err", err)
			fmt.Fprintf(out, "❌ Validation failed after %d row(s): %v\n", rows, err)
			return err
		}
	}

	fmt.Fprintf(out, "✅ Valid: %d column(s) over %d row(s) in %d file(s)\n", len(columns), r.TotalRows(), len(r.Files()))
	return nil
}
