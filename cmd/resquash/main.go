package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/resquash/resquash/internal/config"
	"github.com/resquash/resquash/internal/logging"
)

var (
	// Version is set during build
	Version = "dev"
	// GitCommit is set during build
	GitCommit = "none"
	// BuildDate is set during build
	BuildDate = "unknown"

	// Logger instance - global within main package for simplicity
	appLogger logging.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "resquash [flags]",
	Short: "Reorganize messy changes into clean, logical commits",
	Long: `Resquash takes the diff against your base branch, splits it into
hunks, groups the hunks into coherent commits (with an AI planner, a plan
file, or a file-based heuristic), and rewrites them onto your branch.

Examples:
  resquash                       # plan and apply against the configured base branch
  resquash --base develop        # use a different base branch
  resquash --plan plan.yaml -y   # apply a reviewed plan file without prompting`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runCmdImpl(cmd, args)
	},
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
}

func init() {
	rootCmd.PersistentFlags().StringP("base", "b", "", "Base branch to diff against (default from config)")
	rootCmd.PersistentFlags().StringP("strategy", "s", "", "Application strategy: native or legacy")
	rootCmd.PersistentFlags().StringP("plan", "p", "", "Path to a JSON/YAML plan file instead of generating one")
	rootCmd.PersistentFlags().StringP("model", "m", "", "AI model to use for plan generation")
	rootCmd.PersistentFlags().Bool("no-ai", false, "Skip the AI planner and group hunks by file")
	rootCmd.PersistentFlags().BoolP("auto-apply", "y", false, "Apply the plan without the approval prompt")

	// Logging flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging to a file")
	rootCmd.PersistentFlags().String("log-file", "", "Path to the log file (default: ~/.cache/resquash/logs/resquash-<timestamp>.log)")

	// Bind standard Go flags to pflag
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
}

// runCmdImpl implements the root command functionality
func runCmdImpl(cmd *cobra.Command, args []string) {
	base, _ := cmd.Flags().GetString("base")
	strategyFlag, _ := cmd.Flags().GetString("strategy")
	planPath, _ := cmd.Flags().GetString("plan")
	model, _ := cmd.Flags().GetString("model")
	noAI, _ := cmd.Flags().GetBool("no-ai")
	autoApply, _ := cmd.Flags().GetBool("auto-apply")
	debugFlag, _ := cmd.Flags().GetBool("debug")
	logFileFlag, _ := cmd.Flags().GetString("log-file")

	// --- Initialize Logger FIRST ---
	var err error
	if debugFlag {
		logPath := logFileFlag
		if logPath == "" {
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Could not get user cache directory: %v. Logging to current dir.\n", err)
				cacheDir = "."
			}
			logDir := filepath.Join(cacheDir, "resquash", "logs")
			logFile := fmt.Sprintf("resquash-%s.log", time.Now().Format("20060102-150405"))
			logPath = filepath.Join(logDir, logFile)
		}
		appLogger, err = logging.NewFileLogger(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating file logger: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if appLogger != nil {
				if closeErr := appLogger.Close(); closeErr != nil {
					fmt.Fprintf(os.Stderr, "Error closing logger: %v\n", closeErr)
				}
			}
		}()
		appLogger.Log("--- Resquash Session Start --- Version: %s, Commit: %s, Built: %s", Version, GitCommit, BuildDate)
		appLogger.Log("Debug logging enabled. Log file: %s", logPath)
	} else {
		appLogger = logging.NewNilLogger()
	}
	// --- End Logger Initialization ---

	cfg, err := config.Load()
	if err != nil {
		appLogger.Log("Error loading config: %v", err)
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Override config with flags
	if base != "" {
		cfg.BaseBranch = base
	}
	if strategyFlag != "" {
		cfg.Strategy = strategyFlag
	}
	if model != "" {
		cfg.Model = model
	}
	if autoApply {
		cfg.AutoApply = true
	}
	cfg.Debug = debugFlag
	cfg.LogFile = logFileFlag

	appLogger.Log("Config loaded: Strategy=%s, BaseBranch=%s, Model=%s", cfg.Strategy, cfg.BaseBranch, cfg.Model)

	app := newApp(cfg, appLogger, planPath, noAI)
	if err := app.run(); err != nil {
		appLogger.Log("Run failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
