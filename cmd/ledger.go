package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tuition-receipts-go/ledger"
	"tuition-receipts-go/models"
	"tuition-receipts-go/payments"
)

var ledgerReport string

var ledgerCmd = &cobra.Command{
	Use:   "ledger <workbook.xlsx>",
	Short: "Print the students found in a workbook",
	Long: `Print every student extracted from the workbook with the fee totals.
With --report, also write a status workbook with a paid column and the totals.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLedger(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().StringVar(&ledgerReport, "report", "", "Write a status report to this .xlsx file")
}

func runLedger(cmd *cobra.Command, path string) error {
	records, err := readRecords(path, cfg.Layout)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	view, err := payments.BuildView(a.store, records, models.TabAll)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STT\tHọ tên\tLớp\tSố buổi\tHọc phí/buổi\tTổng\tĐã thu")
	for _, s := range records {
		paid := ""
		if view.Paid[s.Key()] {
			paid = "x"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", s.SequenceNumber, s.Name, s.ClassName,
			models.FormatAmount(s.SessionCount), models.FormatAmount(s.PricePerSession),
			models.FormatAmount(s.TotalFee), paid)
	}
	w.Flush()

	t := view.Totals
	fmt.Fprintf(cmd.OutOrStdout(), "\nTổng cần thu: %s đ (%d học sinh)\n", models.FormatAmount(t.TotalFee), t.TotalCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Đã thu được:  %s đ (%d học sinh)\n", models.FormatAmount(t.CollectedFee), t.PaidCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Chưa thu:     %s đ (%d học sinh)\n", models.FormatAmount(t.UncollectedFee), t.UnpaidCount)

	if ledgerReport == "" {
		return nil
	}
	data, err := ledger.WriteStatusReport(records, view.Paid, t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(ledgerReport, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s (%s)\n", ledgerReport, humanize.Bytes(uint64(len(data))))
	return nil
}
