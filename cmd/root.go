// Package cmd implements the command line interface.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"tuition-receipts-go/config"
)

const defaultConfigFile = "config.yaml"

var (
	cfgFile string
	verbose bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "receipts",
	Short: "Tuition receipts - load a tuition workbook, track payments, export receipt images",
	Long: `receipts reads the centre's tuition workbook, keeps track of which students
have paid, and renders a receipt image for every student.

Example Usage:
  receipts serve                          # Run the HTTP API on :8080
  receipts export hocphi.xlsx --out out/  # Write one PNG receipt per student
  receipts ledger hocphi.xlsx             # Print the extracted ledger and totals`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		c, err := config.Load(cfgFile, cfgFile == defaultConfigFile)
		if err != nil {
			return err
		}
		cfg = c
		setupLogging(c.LogLevel)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func setupLogging(level string) {
	log.SetReportTimestamp(true)
	if verbose {
		log.SetLevel(log.DebugLevel)
		return
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
