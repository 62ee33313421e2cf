package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-handscroll/pkg/gesture"
)

var mapOpts struct {
	low, high float64
}

var mapCmd = &cobra.Command{
	Use:   "map <y>...",
	Short: "Print the progress value for raw fingertip heights",
	Long: `Maps normalized fingertip Y coordinates (0 top, 1 bottom) through the
dead-zone band and prints one line per input. Useful for tuning --low and
--high before a run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMap,
}

func init() {
	mapCmd.Flags().Float64Var(&mapOpts.low, "low", gesture.DefaultLow, "Raw Y mapped to 0")
	mapCmd.Flags().Float64Var(&mapOpts.high, "high", gesture.DefaultHigh, "Raw Y mapped to 1")
	rootCmd.AddCommand(mapCmd)
}

func runMap(cmd *cobra.Command, args []string) error {
	cfg := gesture.DefaultConfig()
	cfg.Low, cfg.High = mapOpts.low, mapOpts.high
	m, err := gesture.NewMapper(cfg)
	if err != nil {
		return err
	}

	for _, arg := range args {
		y, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid y %q: %w", arg, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%g\t%.4f\n", y, m.Map(y))
	}
	return nil
}
