package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/buemura/rook/internal/output"
	"github.com/buemura/rook/internal/store"
	"github.com/buemura/rook/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	historyRunFlag    string
	historyTargetFlag string
	historyLimitFlag  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored scan records",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored record in the selected output format",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored record",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "only records from this run id")
	historyCmd.Flags().StringVar(&historyTargetFlag, "target", "", "only records for this target")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 50, "maximum number of records")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func openStore() (*store.Store, error) {
	if appConfig.Database.Driver == "none" {
		return nil, errors.New("record storage is disabled (database.driver is none)")
	}
	if err := ensureDBDir(appConfig.Database); err != nil {
		return nil, err
	}
	return store.Open(appConfig.Database)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.List(cmd.Context(), store.ListOptions{
		RunID:  historyRunFlag,
		Target: historyTargetFlag,
		Limit:  historyLimitFlag,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No stored records.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Target", "Run", "Web", "Failed", "Scanned", "Elapsed"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")
	for _, r := range rows {
		web := "no"
		if r.IsWebTarget {
			web = "yes"
		}
		table.Append([]string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.Target,
			shortID(r.RunID),
			web,
			strconv.Itoa(r.FailedStages),
			r.ScannedAt.Local().Format("2006-01-02 15:04:05"),
			(time.Duration(r.ElapsedMS) * time.Millisecond).String(),
		})
	}
	table.Render()
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := parseRecordID(args[0])
	if err != nil {
		return err
	}
	formatter, err := output.GetFormatter(appConfig.OutputFormat)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("record %d: %w", id, err)
	}
	return formatter.Format(cmd.OutOrStdout(), []*types.ScanRecord{rec})
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	id, err := parseRecordID(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("record %d: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %d\n", id)
	return nil
}

func parseRecordID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return uint(n), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
