package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := runtime.GOOS + "/" + runtime.GOARCH
			if o.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version":    o.info.Version,
					"build_time": o.info.BuildTime,
					"go_version": o.info.GoVersion,
					"platform":   platform,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Camera Viewer %s\n", o.info.Version)
			fmt.Fprintf(out, "  Build time: %s\n", o.info.BuildTime)
			fmt.Fprintf(out, "  Go version: %s\n", o.info.GoVersion)
			fmt.Fprintf(out, "  Platform:   %s\n", platform)
			return nil
		},
	}
}
