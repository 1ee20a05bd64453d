package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tuition-receipts-go/export"
	"tuition-receipts-go/ledger"
	"tuition-receipts-go/models"
	"tuition-receipts-go/payments"
)

var (
	exportOut    string
	exportFormat string
	exportTab    string
)

var exportCmd = &cobra.Command{
	Use:   "export <workbook.xlsx>",
	Short: "Write one receipt file per student",
	Long: `Read the workbook and write a receipt for every student on the chosen tab,
one at a time, into the output directory. Files are named
{name}_{class}.png (or .pdf). A receipt that fails to render is reported and
skipped.

The paid and unpaid tabs use the configured payment store; with the memory
store nobody has paid yet.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output directory (overrides export.output_dir)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "png or pdf (overrides export.format)")
	exportCmd.Flags().StringVar(&exportTab, "tab", "all", "Students to export: all, paid or unpaid")
}

func runExport(cmd *cobra.Command, path string) error {
	start := time.Now()
	tab, err := models.ParseTabFilter(exportTab)
	if err != nil {
		return err
	}
	if exportFormat != "" {
		cfg.Export.Format = exportFormat
	}
	out := cfg.Export.OutputDir
	if exportOut != "" {
		out = exportOut
	}

	records, err := readRecords(path, cfg.Layout)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	view, err := payments.BuildView(a.store, records, tab)
	if err != nil {
		return err
	}
	if len(view.Students) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No students to export.")
		return nil
	}

	progress := export.NotifierFunc(func(e models.Event) {
		if e.Type == models.EventProgress {
			fmt.Fprintln(cmd.OutOrStdout(), e.Progress.StatusText)
		}
	})
	exports, err := a.orchestrator(progress)
	if err != nil {
		return err
	}

	status := exports.RunBatch(cmd.Context(), uuid.NewString(), view.Students, export.DirSink{Dir: out})
	log.Info("Export complete", "dir", out, "written", status.Delivered, "skipped", len(status.Failed),
		"took", time.Since(start).Round(time.Millisecond))
	for _, name := range status.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", name)
	}
	return nil
}

// readRecords extracts the ledger without touching payment state.
func readRecords(path string, layout ledger.Layout) ([]models.StudentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	_, cells, err := ledger.ReadFirstSheet(f)
	if err != nil {
		return nil, err
	}
	return ledger.Extract(cells, layout), nil
}
