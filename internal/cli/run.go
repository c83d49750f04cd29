package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/buemura/rook/internal/output"
	"github.com/buemura/rook/pkg/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	targetsFileFlag string
	reportFileFlag  string
)

var runCmd = &cobra.Command{
	Use:   "run [targets...]",
	Short: "Scan one or more targets",
	Long: `Runs the full pipeline against every target. Targets may be hosts, IPs,
URLs, IPv4 ranges (10.0.0.1-10.0.0.20) or CIDR blocks, given as arguments
or read from --targets-file.`,
	Example: `  rook run example.com 10.0.0.0/30
  rook run -s fast --targets-file hosts.txt -o json
  rook run example.com --command "whois {target}"`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&targetsFileFlag, "targets-file", "f", "", "file with one or more targets per line")
	f.StringVar(&reportFileFlag, "report", "", "write the formatted report to this file instead of stdout")
	f.String("ports", "", "ports to scan (nmap syntax, default: nmap top 1000)")
	f.String("scan-type", "", "port scan type: SYN, TCP or UDP")
	f.Bool("no-fuzz", false, "skip web content and subdomain fuzzing")
	f.Bool("advice", false, "ask the advice endpoint for attack vectors")
	f.Bool("helper", false, "start the exploit-module RPC helper")
	f.StringArray("command", nil, "extra command to run per target; {target} is substituted (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	targets, err := collectTargets(args, targetsFileFlag)
	if err != nil {
		return err
	}

	formatter, err := output.GetFormatter(appConfig.OutputFormat)
	if err != nil {
		return err
	}

	a, err := buildApp(appConfig, appLog)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := cmd.ErrOrStderr()
	a.orch.OnRecord = func(r *types.RunReport, rec *types.ScanRecord) {
		printProgress(progress, r, rec)
	}

	fmt.Fprintf(progress, "Scanning %d targets (%s)\n", len(targets), a.defaults.Speed)
	report, err := a.run(ctx, targets, a.defaults)
	if report == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportFileFlag != "" {
		fh, ferr := os.Create(reportFileFlag)
		if ferr != nil {
			return fmt.Errorf("creating report file: %w", ferr)
		}
		defer fh.Close()
		out = fh
	}
	if ferr := formatter.Format(out, report.SortedRecords()); ferr != nil {
		return fmt.Errorf("rendering report: %w", ferr)
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("run cancelled after %d of %d targets", report.Completed(), report.Total())
	}
	return err
}

// collectTargets merges positional arguments with the targets file and validates
// the result.
func collectTargets(args []string, file string) ([]string, error) {
	input := strings.Join(args, "\n")
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading targets file: %w", err)
		}
		input += "\n" + string(data)
	}
	return types.ParseTargets(input)
}

func printProgress(w io.Writer, r *types.RunReport, rec *types.ScanRecord) {
	failed := len(rec.FailedStages())
	status := color.GreenString("done")
	if failed > 0 {
		status = color.YellowString("%d failed stages", failed)
	}
	fmt.Fprintf(w, "[%d/%d] %s %s\n", r.Completed(), r.Total(), rec.Target, status)
}
