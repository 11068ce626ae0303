package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// BuildInfo is set by linker flags in main.
type BuildInfo struct {
	Version   string
	BuildTime string
	GoVersion string
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	cfgFile    string
	jsonOutput bool
	info       BuildInfo
}

// NewRootCmd builds the command tree. Without a subcommand it opens the
// camera list window.
func NewRootCmd(info BuildInfo) *cobra.Command {
	o := &rootOptions{info: info}

	root := &cobra.Command{
		Use:   "camera-viewer",
		Short: "Register IP cameras and watch their live streams",
		Long: `Keep a local list of RTSP cameras and view one or several of them
at once. Run without a subcommand to open the camera list window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI(o, false, nil)
		},
	}

	root.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file (default is ./config.ini or $CAMERA_VIEWER_CONFIG)")
	root.PersistentFlags().BoolVar(&o.jsonOutput, "json", false, "Output results as JSON")

	root.AddCommand(
		newViewCmd(o),
		newCamerasCmd(o),
		newVersionCmd(o),
	)
	return root
}

// Execute runs the command tree and exits 1 on error.
func Execute(info BuildInfo) {
	if err := NewRootCmd(info).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
