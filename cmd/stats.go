package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bisegni/jchain/pkg/database"
)

var statsCmd = &cobra.Command{
	Use:   "stats FILE...",
	Short: "Show row counts and column statistics",
	Long: `Display the row count of every file and the total. For each declared
column, show who owns its storage and, for numeric columns, the minimum,
maximum and mean over all rows. Array columns contribute every element.

Examples:
  jchain stats run1.jsonl run2.jsonl
  jchain stats -c energy:float64 -c hits:[]int64 'data/*.parquet'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(Columns) == 0 {
		s, err := openStream(args)
		if err != nil {
			return err
		}
		defer s.Detach()
		counts, err := s.PartitionRows()
		if err != nil {
			return err
		}
		printCounts(cmd, s.Files(), counts)
		return nil
	}

	r, columns, err := openReader(args)
	if err != nil {
		return err
	}
	defer r.Close()

	counts, err := r.PartitionRows()
	if err != nil {
		return err
	}
	printCounts(cmd, r.Files(), counts)

	labels := database.Labels(r.Columns())
	summaries, err := database.Summarize(database.NewChainTable(r), labels)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nColumns:\n")
	for i, s := range summaries {
		fmt.Fprintf(out, "  %s (%s, %s-owned): %d rows", labels[i], columns[i].Type, r.Ownership(i), s.Rows)
		if s.Numeric {
			fmt.Fprintf(out, ", min %g, max %g, mean %g", s.Min(), s.Max(), s.Mean())
		}
		fmt.Fprintln(out)
	}
	return nil
}

func printCounts(cmd *cobra.Command, files []string, counts []int64) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stream: %s\n", StreamName)
	fmt.Fprintf(out, "Files:\n")
	var total int64
	for i, f := range files {
		fmt.Fprintf(out, "  %s: %d rows\n", f, counts[i])
		total += counts[i]
	}
	fmt.Fprintf(out, "Total rows: %d\n", total)
}
