// Command swervesim runs the swerve drivetrain against simulated modules.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.viam.com/rdk/logging"
)

var (
	logLevel   = "info"
	trackWidth = 0.6
	wheelbase  = 0.6
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// coreLogger is handed to the drivetrain packages. Their output is only shown at debug level.
func coreLogger() logging.Logger {
	if logLevel == "debug" || logLevel == "trace" {
		return logging.NewDebugLogger("swervesim")
	}
	return logging.NewLogger("swervesim")
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swervesim",
		Short: "swervesim drives a simulated swerve base",
		Long: `swervesim drives a simulated swerve base.

The drivetrain, pose estimator and balance controller run unchanged against
simulated modules, a simulated gyro and an optional tilting platform.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error)")
	globalFlags.Float64Var(&trackWidth, "track-width", trackWidth, "distance between left and right modules, meters")
	globalFlags.Float64Var(&wheelbase, "wheelbase", wheelbase, "distance between front and back modules, meters")

	cmd.AddCommand(
		NewDriveCommand(),
		NewBalanceCommand(),
	)

	return cmd
}
