package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"camtrap-pipeline/internal/archive"
	"camtrap-pipeline/internal/conf"
	"camtrap-pipeline/internal/conformance"
	"camtrap-pipeline/internal/model"
	"camtrap-pipeline/internal/pipeline"
	"camtrap-pipeline/internal/store"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(settings).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "camtrap",
		Short: "Convert camera trap exports into Camtrap DP packages",
	}

	rootCmd.PersistentFlags().StringVar(&settings.History.DB, "history-db", settings.History.DB, "run history database path, empty disables history")

	rootCmd.AddCommand(convertCmd(settings))
	rootCmd.AddCommand(checkCmd(settings))
	rootCmd.AddCommand(runsCmd(settings))
	return rootCmd
}

// consoleReporter prints pipeline progress and log lines to stdout.
type consoleReporter struct{}

func (consoleReporter) Progress(pct int, msg string) {
	fmt.Printf("[%3d%%] %s\n", pct, msg)
}

func (consoleReporter) Log(msg string) {
	fmt.Println(msg)
}

func convertCmd(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [archive]",
		Short: "Convert an export archive into a Camtrap DP package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			spec := model.ConversionSpec{
				ArchivePath:  args[0],
				OutputDir:    settings.Output.Dir,
				TimezoneHint: settings.Timezone.Hint,
				Validate:     settings.Validate,
				MakeZip:      settings.Zip,
				Overwrite:    settings.Overwrite,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			history := settings.History.DB != ""
			if history {
				if err := store.InitDB(settings.History.DB); err != nil {
					return fmt.Errorf("open run history: %w", err)
				}
				defer store.CloseDB()
			}

			result, err := pipeline.Run(ctx, spec, consoleReporter{})
			if err != nil {
				if history {
					recordFailure(spec, err)
				}
				return reportRunError(err)
			}

			if history {
				if err := recordSuccess(spec, result); err != nil {
					fmt.Printf("warning: could not record run history: %v\n", err)
				}
			}

			printSummary(result)
			if settings.OpenFolderAfter {
				openFolder(result.OutputDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&settings.Output.Dir, "out", "o", settings.Output.Dir, "directory to write the package into")
	cmd.Flags().StringVar(&settings.Timezone.Hint, "tz", settings.Timezone.Hint, "timezone for naive export timestamps")
	cmd.Flags().BoolVar(&settings.Validate, "validate", settings.Validate, "check the written package against its table schemas")
	cmd.Flags().BoolVar(&settings.Zip, "zip", settings.Zip, "also produce a zip of the package")
	cmd.Flags().BoolVar(&settings.Overwrite, "overwrite", settings.Overwrite, "replace an existing package directory")
	cmd.Flags().BoolVar(&settings.OpenFolderAfter, "open", settings.OpenFolderAfter, "open the output folder when done")
	return cmd
}

func checkCmd(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "check [archive or package dir]",
		Short: "Validate an export archive or an already written package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if info.IsDir() {
				return checkPackage(args[0])
			}
			return checkArchive(args[0], settings.Timezone.Hint)
		},
	}
}

// checkArchive runs the pre-conversion validation gate over an export.
func checkArchive(path, timezoneHint string) error {
	norm, err := pipeline.NewNormalizer(timezoneHint)
	if err != nil {
		return err
	}
	ex, err := archive.Open(path)
	if err != nil {
		return reportRunError(err)
	}
	if err := pipeline.CheckExport(ex, norm); err != nil {
		return reportRunError(err)
	}

	fmt.Printf("Archive OK: %d deployments, %d image records\n",
		len(ex.Deployments.Rows), len(ex.Images.Rows))
	return nil
}

// checkPackage conformance-checks a written package directory.
func checkPackage(dir string) error {
	report, err := conformance.New().Check(dir)
	if err != nil {
		return err
	}
	if report.Valid {
		fmt.Println("Package conforms to its table schemas")
		return nil
	}
	fmt.Printf("Conformance violations (%d):\n", len(report.Violations))
	for _, v := range report.Violations {
		fmt.Printf("  - %s\n", v.String())
	}
	return fmt.Errorf("%d conformance violation(s)", len(report.Violations))
}

func runsCmd(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List past conversion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if settings.History.DB == "" {
				return errors.New("run history is disabled, set --history-db to enable it")
			}
			if err := store.InitDB(settings.History.DB); err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.CloseDB()

			runs, err := store.ListRuns()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs yet. Use 'camtrap convert' to create one.")
				return nil
			}

			for _, run := range runs {
				line := fmt.Sprintf("%s  %-9s", run["id"], run["status"])
				if run["status"] == "completed" {
					line += fmt.Sprintf("  %v warning(s), %v dropped  %v", run["warnings"], run["dropped"], run["outputDir"])
				} else if msg, _ := run["error"].(string); msg != "" {
					line += "  " + msg
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

// recordSuccess stores a completed run and its warnings in the history DB.
func recordSuccess(spec model.ConversionSpec, result *pipeline.Result) error {
	if err := store.SaveRun(result.RunID, spec); err != nil {
		return err
	}
	if err := store.FinishRun(result.RunID, result.OutputDir, result.Report); err != nil {
		return err
	}
	return store.SaveRunIssues(result.RunID, result.Report.Warnings)
}

// recordFailure stores a failed run; history errors are not allowed to mask
// the conversion error.
func recordFailure(spec model.ConversionSpec, runErr error) {
	runID := pipeline.NewRunID()
	if err := store.SaveRun(runID, spec); err != nil {
		return
	}
	_ = store.SaveRunError(runID, runErr)
}

// reportRunError prints the error in a shape matching its kind before
// handing it back to cobra.
func reportRunError(err error) error {
	var blocking *model.BlockingDataError
	if errors.As(err, &blocking) {
		fmt.Printf("Conversion blocked: %d data issue(s) must be fixed in the source:\n", len(blocking.Issues))
		for _, issue := range blocking.Issues {
			fmt.Printf("  - %s\n", issue.String())
		}
		return fmt.Errorf("%d blocking data issue(s)", len(blocking.Issues))
	}
	return err
}

func printSummary(result *pipeline.Result) {
	report := result.Report
	fmt.Printf("\nPackage: %s\n", result.OutputDir)
	if result.ZipPath != "" {
		fmt.Printf("Archive: %s\n", result.ZipPath)
	}
	fmt.Printf("Tables: %d deployments, %d media, %d observations\n",
		len(result.Package.Deployments), len(result.Package.Media), len(result.Package.Observations))
	if report.WarningCount() > 0 {
		fmt.Printf("Warnings (%d):\n", report.WarningCount())
		for _, issue := range report.Warnings {
			fmt.Printf("  - %s\n", issue.String())
		}
	}
	if report.Dropped > 0 {
		fmt.Printf("Dropped rows: %d\n", report.Dropped)
	}
	if result.Conformance != nil && !result.Conformance.Valid {
		fmt.Printf("Conformance violations (%d):\n", len(result.Conformance.Violations))
		for _, v := range result.Conformance.Violations {
			fmt.Printf("  - %s\n", v.String())
		}
	}
}

// openFolder opens dir in the platform file manager, best effort.
func openFolder(dir string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	if err := cmd.Start(); err != nil {
		fmt.Printf("warning: could not open folder: %v\n", err)
	}
}
