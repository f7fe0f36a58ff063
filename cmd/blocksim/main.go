package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir    string
	storeKind  string
	duration   float64
	steps      int
	tolerance  float64
	maxIter    int
	params     map[string]string
	configFile string
	preset     string
	noSave     bool
	showPlot   bool
	outPath    string
	plotWidth  int
	plotHeight int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "blocksim",
		Short:         "block diagram dynamic system simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".blocksim", "data directory")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "file", "run store (file, sqlite)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "simulate a model and store the run",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	addModelFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot the variables after the run")

	planCmd := &cobra.Command{
		Use:   "plan [model]",
		Short: "print the resolution order of a model",
		Args:  cobra.ExactArgs(1),
		RunE:  showPlan,
	}
	addModelFlags(planCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")

	pngCmd := &cobra.Command{
		Use:   "png [run_id]",
		Short: "render run results to a png file",
		Args:  cobra.ExactArgs(1),
		RunE:  pngRun,
	}
	pngCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>.png)")

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "browse run variables interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  viewRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	metricsCmd := &cobra.Command{
		Use:   "metrics [run_id]",
		Short: "show the solver metrics of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showMetrics,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list available models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	rootCmd.AddCommand(runCmd, planCmd, listCmd, plotCmd, pngCmd, viewCmd,
		exportJSONCmd, exportCSVCmd, metricsCmd, presetsCmd, modelsCmd,
		newAnalyzeCmd(), newSweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&duration, "time", 10.0, "end time")
	cmd.Flags().IntVar(&steps, "steps", 1000, "number of time steps")
	cmd.Flags().Float64Var(&tolerance, "tol", 1e-10, "implicit solver tolerance")
	cmd.Flags().IntVar(&maxIter, "max-iter", 50, "implicit solver iteration limit")
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "model parameter (name=value)")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}
