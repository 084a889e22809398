package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/crucible/internal/config"
	"github.com/jbweber/crucible/internal/harness"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Exit statuses. The ambiguous-name status is distinct so an operator (or a
// wrapping script) can tell "go clean up the host by hand" apart from any
// ordinary failure; same for an install that timed out.
const (
	exitFailure        = 1
	exitAmbiguousName  = 2
	exitInstallTimeout = 3
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error from the harness to the process exit status.
func exitCode(err error) int {
	var ambErr *harness.AmbiguousNameError
	if errors.As(err, &ambErr) {
		return exitAmbiguousName
	}
	var timeoutErr *harness.InstallTimeoutError
	if errors.As(err, &timeoutErr) {
		return exitInstallTimeout
	}
	return exitFailure
}

var rootCmd = &cobra.Command{
	Use:   "crucible",
	Short: "Crucible - headless install test harness",
	Long: `Crucible builds a bootable overlay image and validates it by provisioning
a throwaway VM on a virtualization host: stale resources are removed, the
image is built and uploaded, a fresh VM is created and booted, and the
unattended install is waited out before the installed system is started.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagVerbose        bool
	flagInstallTimeout time.Duration
)

func init() {
	runCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	runCmd.Flags().DurationVar(&flagInstallTimeout, "install-timeout", 0,
		"override the configured install timeout (0 = poll forever)")
	cleanupCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanupCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <config.yaml>",
	Short: "Run the full provisioning workflow",
	Long: `Run the full provisioning workflow from a YAML configuration file.

This removes leftovers from a previous run, builds the overlay image,
ensures the base installer image is in the storage pool, creates the test
VM with disk, NIC and both CD-ROM drives, boots the unattended install,
waits for it to power the VM off, and boots the installed system.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromFile(args[0])
		if err != nil {
			return err
		}
		applyInstallTimeout(cfg, cmd.Flags().Changed("install-timeout"), flagInstallTimeout)

		return harness.Run(cmd.Context(), cfg, newLogger(flagVerbose))
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <config.yaml>",
	Short: "Remove leftovers from a previous run",
	Long: `Remove everything a previous run may have left behind: local build
artifacts, the test VM on the host, and the stale overlay image in the
storage pool. Run this after an aborted run before inspecting the host.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromFile(args[0])
		if err != nil {
			return err
		}

		return harness.Cleanup(cmd.Context(), cfg, newLogger(flagVerbose))
	},
}

// applyInstallTimeout overrides the configured install timeout when the flag
// was given on the command line. An explicit zero disables the bound and
// polls forever, same as install_timeout: 0s in the config file.
func applyInstallTimeout(cfg *config.Config, set bool, timeout time.Duration) {
	if set {
		cfg.InstallTimeout = config.NewDuration(timeout)
	}
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}
