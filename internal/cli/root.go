// Package cli implements the handscroll command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-handscroll/internal/config"
	"github.com/teslashibe/go-handscroll/internal/log"
	"github.com/teslashibe/go-handscroll/pkg/debug"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	logLevel    string
	debugFlag   bool
	debugFrames bool
)

// env is loaded once in the root pre-run and read by every subcommand.
var env config.Env

var rootCmd = &cobra.Command{
	Use:   "handscroll",
	Short: "Scroll a progress value with hand gestures from a webcam",
	Long: `Handscroll preloads a hand-landmark model, opens the camera and maps the
height of your index fingertip onto a smoothed 0-1 scroll value. The value is
served over HTTP and WebSocket and can also be driven by wheel, touch or
explicit targets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		e, err := config.Load()
		if err != nil {
			return err
		}
		env = e

		if !cmd.Flags().Changed("log-level") {
			logLevel = env.LogLevel
		}
		if !cmd.Flags().Changed("debug") {
			debugFlag = env.Debug
		}
		log.Init(logLevel)
		debug.Enabled = debugFlag
		debug.Frames = debugFrames
		return nil
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("handscroll version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&debugFlag, "debug", false, "Enable verbose debug logging")
	pf.BoolVar(&debugFrames, "debug-frames", false, "Log every processed gesture frame")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
