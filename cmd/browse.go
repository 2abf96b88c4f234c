package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/bisegni/jchain/pkg/chain"
	"github.com/bisegni/jchain/pkg/database"
)

var browseCmd = &cobra.Command{
	Use:   "browse FILE...",
	Short: "Move a row cursor interactively",
	Long: `Open an interactive shell over the chain. Each command moves the
reader's cursor and prints the row it lands on.

Commands:
  goto N   jump to row N
  next     move forward one row
  prev     move back one row
  first    jump to the first row
  last     jump to the last row
  show     print the current row again
  count    print the row count of every file
  help     list commands
  exit     leave (also quit, ^D)

Examples:
  jchain browse -c x:int64 -c tag:string run1.jsonl run2.jsonl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	r, _, err := openReader(args)
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Browsing %d row(s) of stream %q in %d file(s). Type 'help' for commands.\n",
		r.TotalRows(), r.Stream(), len(r.Files()))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "[-] > ",
		HistoryFile:     "", // In-memory history for this session
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          out,
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	b := newBrowser(r, out)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		quit, err := b.exec(line)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		if quit {
			break
		}
		rl.SetPrompt(b.prompt())
	}
	return nil
}

// browser runs shell commands against a reader.
type browser struct {
	r      *chain.Reader
	labels []string
	out    io.Writer
}

func newBrowser(r *chain.Reader, out io.Writer) *browser {
	return &browser{r: r, labels: database.Labels(r.Columns()), out: out}
}

func (b *browser) prompt() string {
	if b.r.Row() < 0 {
		return "[-] > "
	}
	return fmt.Sprintf("[%d] > ", b.r.Row())
}

// exec runs one command line. It reports whether the shell should exit.
func (b *browser) exec(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch strings.ToLower(fields[0]) {
	case "exit", "quit":
		return true, nil
	case "help":
		fmt.Fprintln(b.out, "commands: goto N, next, prev, first, last, show, count, help, exit")
	case "goto":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: goto N")
		}
		row, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("bad row %q", fields[1])
		}
		return false, b.move(row)
	case "next":
		return false, b.move(b.r.Row() + 1)
	case "prev":
		return false, b.move(b.r.Row() - 1)
	case "first":
		return false, b.move(0)
	case "last":
		return false, b.move(b.r.TotalRows() - 1)
	case "show":
		return false, b.show()
	case "count":
		counts, err := b.r.PartitionRows()
		if err != nil {
			return false, err
		}
		for i, f := range b.r.Files() {
			fmt.Fprintf(b.out, "  %s: %d\n", f, counts[i])
		}
		fmt.Fprintf(b.out, "total: %d\n", b.r.TotalRows())
	default:
		return false, fmt.Errorf("unknown command %q, try 'help'", fields[0])
	}
	return false, nil
}

func (b *browser) move(row int64) error {
	if err := b.r.Position(row); err != nil {
		return err
	}
	return b.show()
}

func (b *browser) show() error {
	if b.r.Row() < 0 {
		return fmt.Errorf("no row loaded yet")
	}
	values := database.Snapshot(b.r, b.labels)
	fmt.Fprintf(b.out, "row %d (partition %d): %s\n", b.r.Row(), b.r.Partition(), values)
	return nil
}
