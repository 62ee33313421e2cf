package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-handscroll/pkg/app"
	"github.com/teslashibe/go-handscroll/pkg/gesture/landmarknet"
	"github.com/teslashibe/go-handscroll/pkg/preload"
)

var preloadCmd = &cobra.Command{
	Use:   "preload [file...]",
	Short: "Download model files and report progress",
	Long: `Fetches the model files in parallel with the same progress reporting the
run command uses, then prints each file's handle and size. Without arguments
the files from HANDSCROLL_MODEL_FILES are fetched, or both model variants
when it is unset.`,
	RunE: runPreload,
}

func init() {
	rootCmd.AddCommand(preloadCmd)
}

func runPreload(cmd *cobra.Command, args []string) error {
	files := env.ModelFiles
	if len(files) == 0 {
		files = []string{landmarknet.FullModelFile, landmarknet.LiteModelFile}
	}
	if len(args) > 0 {
		files = args
	}

	out := cmd.OutOrStdout()
	p := preload.New()
	handles, err := p.Preload(cmd.Context(), preload.Requests(env.ModelBaseURL, files),
		func(percent, speed, loadedMB, totalMB float64) {
			fmt.Fprintln(out, app.DownloadMessage(percent, speed, loadedMB, totalMB))
		})
	if err != nil {
		return fmt.Errorf("preload failed for %v: %w", preload.FailedAssets(err), err)
	}

	names := make([]string, 0, len(handles))
	for name := range handles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h := handles[name]
		fmt.Fprintf(out, "%s\t%s\t%d bytes\n", name, h.URL, h.Size())
	}
	return nil
}
