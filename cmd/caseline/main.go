// Caseline - activity timelines from lifecycle-tagged process mining logs.
// Computes per-case processing intervals and waiting windows from CSV, XES,
// XLSX and Parquet event logs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configFile string
	verbose    bool
	engineFlag string
	formatFlag string

	caseColumn       string
	activityColumn   string
	transitionColumn string
	timestampColumn  string
	resourceColumn   string
	timestampFormat  string
	delimiter        string
)

// Command flags
var (
	inputFile   string
	outputFile  string
	caseID      string
	casesFile   string
	jsonOutput  bool
	workers     int
	failFast    bool
	caseTimeout string
	compression string
	noCache     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "caseline",
	Short: "Caseline - activity timelines from process mining event logs",
	Long: `Caseline computes, for each case of a lifecycle-tagged event log, the
processing intervals of every activity instance and the waiting windows
(suspend to resume) inside them.

Logs may be CSV, XES, XLSX or Parquet, local or on s3://.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: false,
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List the case IDs of a log",
	Long: `List the distinct case IDs in order of first appearance, as a CSV with
header case_id.

Examples:
  caseline cases -i "BPI Challenge 2017.csv"
  caseline cases -i log.xes -o case_list.csv`,
	RunE: runCases,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display event, case and transition counts of a log",
	RunE:  runInfo,
}

var intervalsCmd = &cobra.Command{
	Use:   "intervals",
	Short: "Compute the activity timeline of one case",
	Long: `Compute the processing intervals and waiting windows of every activity
in one case.

Examples:
  caseline intervals -i log.csv --case Application_652823628
  caseline intervals -i s3://logs/bpi2017.parquet --case Application_1 --json`,
	RunE: runIntervals,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Compute the timelines of many cases and export them",
	Long: `Compute the timelines of all cases (or those listed in --cases) in
parallel and write them as JSON, Parquet or XLSX.

Examples:
  caseline batch -i log.csv -o intervals.parquet
  caseline batch -i log.csv --cases case_list.csv -o s3://exports/run.xlsx --workers 8
  caseline batch -i log.csv -o intervals.json --fail-fast`,
	RunE: runBatch,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompute a case whenever the log file changes",
	RunE:  runWatch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: /etc/caseline, ~/.caseline, ./.caseline.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVar(&engineFlag, "engine", "", "Event source engine (memory, duckdb)")
	pf.StringVarP(&formatFlag, "format", "f", "", "Input format (csv, xes, xlsx, parquet) - auto-detected if not specified")
	pf.StringVar(&caseColumn, "case-column", "", "Case ID column name")
	pf.StringVar(&activityColumn, "activity-column", "", "Activity column name")
	pf.StringVar(&transitionColumn, "transition-column", "", "Lifecycle transition column name")
	pf.StringVar(&timestampColumn, "timestamp-column", "", "Timestamp column name")
	pf.StringVar(&resourceColumn, "resource-column", "", "Resource column name")
	pf.StringVar(&timestampFormat, "timestamp-format", "", "Timestamp format (Go time layout) tried before the built-in layouts")
	pf.StringVar(&delimiter, "delimiter", "", "CSV field delimiter")

	// Cases command flags
	casesCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input log (path or s3://bucket/key)")
	casesCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output CSV path (default: stdout)")
	casesCmd.MarkFlagRequired("input")

	// Info command flags
	infoCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input log (path or s3://bucket/key)")
	infoCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a report")
	infoCmd.MarkFlagRequired("input")

	// Intervals command flags
	intervalsCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input log (path or s3://bucket/key)")
	intervalsCmd.Flags().StringVar(&caseID, "case", "", "Case ID")
	intervalsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	intervalsCmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the result cache")
	intervalsCmd.MarkFlagRequired("input")
	intervalsCmd.MarkFlagRequired("case")

	// Batch command flags
	batchCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input log (path or s3://bucket/key)")
	batchCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (.json, .parquet, .xlsx; path or s3://bucket/key)")
	batchCmd.Flags().StringVar(&casesFile, "cases", "", "CSV of case IDs to compute (default: all cases)")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers (default: one per CPU)")
	batchCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first failed case")
	batchCmd.Flags().StringVar(&caseTimeout, "case-timeout", "", "Per-case timeout (e.g. 30s)")
	batchCmd.Flags().StringVar(&compression, "compression", "", "Parquet compression (none, snappy, gzip, zstd, lz4)")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the result cache")
	batchCmd.MarkFlagRequired("input")
	batchCmd.MarkFlagRequired("output")

	// Watch command flags
	watchCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input log path")
	watchCmd.Flags().StringVar(&caseID, "case", "", "Case ID")
	watchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	watchCmd.MarkFlagRequired("input")
	watchCmd.MarkFlagRequired("case")

	// Add commands
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(intervalsCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}
