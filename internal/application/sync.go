package application

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/JonMunkholm/coursehub/internal/core"
)

// isTerminal reports whether r is an interactive terminal.
var isTerminal = func(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var errAborted = errors.New("sync aborted")

func newSyncCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <file>",
		Short: "Create missing courses and fix changed names from a CSV or xlsx file",
		Long: `Sync reads a course list with "code" and "name" columns, compares it with
the courses on the server and shows what would change. After confirmation
missing courses are created and courses whose name differs are renamed,
one request at a time.

Rows with a missing code or name stop the sync before anything changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, v, args[0])
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Apply changes without asking")
	cmd.Flags().Bool("dry-run", false, "Show the analysis and stop")
	return cmd
}

func runSync(cmd *cobra.Command, v *viper.Viper, path string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}

	records, err := readRecords(path)
	if err != nil {
		return reportParseError(cmd.ErrOrStderr(), err)
	}

	c, err := newClient(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wf := core.NewWorkflow(c, core.WithSource("cli"))
	plan, err := wf.PrepareRecords(ctx, records)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printAnalysis(out, plan.Analysis); err != nil {
		return err
	}

	if !plan.NeedsSync() {
		_, err := fmt.Fprintln(out, "Everything is up to date.")
		return err
	}
	if dryRun {
		return nil
	}

	if !yes {
		ok, err := confirm(cmd, plan.Analysis.WorkCount())
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	errOut := cmd.ErrOrStderr()
	report, err := wf.Execute(ctx, plan, func(current, total int) {
		fmt.Fprintf(errOut, "\rSyncing %d/%d", current, total)
	})
	fmt.Fprintln(errOut)

	if printErr := printResult(out, report.Result); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("sync interrupted: %w", err)
	}
	if report.RefreshErr != nil {
		fmt.Fprintf(errOut, "warning: %v\n", report.RefreshErr)
	}
	if n := len(report.Result.Errors); n > 0 {
		return fmt.Errorf("%d of %d changes failed", n, plan.Analysis.WorkCount())
	}
	return nil
}

// readRecords parses path with the strict policy. Files ending in .xlsx
// are read as workbooks, anything else as CSV text.
func readRecords(path string) ([]core.CourseRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()

		res, err := core.ParseWorkbook(f)
		if err != nil {
			return nil, err
		}
		return res.Strict()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return core.ParseCSV(string(data))
}

// reportParseError lists every row error on w and returns a short summary.
func reportParseError(w io.Writer, err error) error {
	var rowErrs core.RowErrors
	if !errors.As(err, &rowErrs) {
		return err
	}
	for _, re := range rowErrs {
		fmt.Fprintln(w, re.Error())
	}
	return fmt.Errorf("%d invalid rows, nothing was synced", len(rowErrs))
}

// confirm asks before mutating. It refuses to guess on a non-interactive stdin.
func confirm(cmd *cobra.Command, count int) (bool, error) {
	in := cmd.InOrStdin()
	if !isTerminal(in) {
		return false, errors.New("stdin is not a terminal: pass --yes to apply changes")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Apply %d changes? [y/N] ", count)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// contextOrBackground keeps commands runnable when Execute is used without
// ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
