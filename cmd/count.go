package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countPerFile bool

var countCmd = &cobra.Command{
	Use:   "count FILE...",
	Short: "Count the rows of a stream across files",
	Long: `Count the rows of the stream across all chained files.

Examples:
  jchain count run1.jsonl run2.jsonl
  jchain count --per-file -t events 'data/*.parquet'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCount,
}

func init() {
	countCmd.Flags().BoolVar(&countPerFile, "per-file", false, "Also print the row count of every file")
}

func runCount(cmd *cobra.Command, args []string) error {
	s, err := openStream(args)
	if err != nil {
		return err
	}
	defer s.Detach()

	out := cmd.OutOrStdout()
	if countPerFile {
		counts, err := s.PartitionRows()
		if err != nil {
			return err
		}
		for i, f := range s.Files() {
			fmt.Fprintf(out, "%s\t%d\n", f, counts[i])
		}
	}

	total, err := s.TotalRows()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, total)
	return nil
}
