package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/probe"
)

const maskedPassword = "****"

func newCamerasCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cameras",
		Short: "Manage registered cameras",
		Long:  `List, add, edit and remove cameras, check that they answer, and move the list between machines.`,
	}
	cmd.AddCommand(
		newCamerasListCmd(o),
		newCamerasGetCmd(o),
		newCamerasAddCmd(o),
		newCamerasUpdateCmd(o),
		newCamerasDeleteCmd(o),
		newCamerasURICmd(o),
		newCamerasProbeCmd(o),
		newCamerasImportCmd(o),
		newCamerasExportCmd(o),
		newCamerasMigrateCmd(o),
	)
	return cmd
}

// withEnv runs fn against a CLI environment and closes it afterwards.
func (o *rootOptions) withEnv(fn func(ctx context.Context, e *env) error) error {
	e, err := o.newEnv(false)
	if err != nil {
		return err
	}
	defer e.close()
	return fn(context.Background(), e)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Annotate(enc.Encode(v), "encoding JSON")
}

func maskPasswords(records []camera.Record) []camera.Record {
	out := camera.Clone(records)
	for i := range out {
		if out[i].Password != "" {
			out[i].Password = maskedPassword
		}
	}
	return out
}

func printTable(w io.Writer, records []camera.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tHOST\tPORT\tUSER\tPASSWORD\tPATH")
	fmt.Fprintln(tw, "----\t----\t----\t----\t--------\t----")
	for _, rec := range maskPasswords(records) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.DeviceName,
			rec.Host,
			rec.Port,
			rec.Username,
			rec.Password,
			rec.Path,
		)
	}
	tw.Flush()
}

func newCamerasListCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all cameras",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, e *env) error {
				records, err := e.reg.List(ctx)
				if err != nil {
					return errors.Annotate(err, "fetching cameras")
				}
				if o.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), maskPasswords(records))
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cameras registered.")
					return nil
				}
				printTable(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}
}

func newCamerasGetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show one camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, e *env) error {
				rec, err := e.reg.Get(ctx, args[0])
				if err != nil {
					return errors.Annotate(err, "fetching camera")
				}
				if o.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), maskPasswords([]camera.Record{rec})[0])
				}
				printTable(cmd.OutOrStdout(), []camera.Record{rec})
				return nil
			})
		},
	}
}

// cameraFlags are the record fields accepted by add and update.
type cameraFlags struct {
	host, port, name, user, pass, path string
}

func (f *cameraFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "Camera host name or IP address")
	cmd.Flags().StringVar(&f.port, "port", "554", "RTSP port")
	cmd.Flags().StringVar(&f.name, "name", "", "Device name, unique among cameras")
	cmd.Flags().StringVar(&f.user, "user", "", "Username for the stream")
	cmd.Flags().StringVar(&f.pass, "password", "", "Password for the stream")
	cmd.Flags().StringVar(&f.path, "path", "", "Stream path (default from stream.path)")
}

// apply copies the flags the user set onto rec.
func (f *cameraFlags) apply(cmd *cobra.Command, rec camera.Record) (camera.Record, error) {
	changed := cmd.Flags().Changed
	if changed("host") {
		rec.Host = f.host
	}
	if changed("port") || rec.Port == 0 {
		port, err := camera.ParsePort(f.port)
		if err != nil {
			return rec, err
		}
		rec.Port = port
	}
	if changed("name") {
		rec.DeviceName = f.name
	}
	if changed("user") {
		rec.Username = f.user
	}
	if changed("password") {
		rec.Password = f.pass
	}
	if changed("path") {
		rec.Path = f.path
	}
	return rec, nil
}

func newCamerasAddCmd(o *rootOptions) *cobra.Command {
	var f cameraFlags
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Register a camera",
		Example: `  camera-viewer cameras add --name "Front Door" --host 192.168.1.20 --user admin --password secret`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := f.apply(cmd, camera.Record{})
			if err != nil {
				return errors.Annotate(err, "adding camera")
			}
			return o.withEnv(func(ctx context.Context, e *env) error {
				records, err := e.reg.Add(ctx, rec)
				if err != nil {
					return errors.Annotate(err, "adding camera")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%d cameras).\n", rec.DeviceName, len(records))
				return nil
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCamerasUpdateCmd(o *rootOptions) *cobra.Command {
	var f cameraFlags
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Edit a camera in place",
		Long:  `Only the flags given are changed. --name renames the camera.`,
		Example: `  camera-viewer cameras update "Front Door" --port 8554
  camera-viewer cameras update Porch --name "Back Porch"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, e *env) error {
				current, err := e.reg.Get(ctx, args[0])
				if err != nil {
					return errors.Annotate(err, "updating camera")
				}
				rec, err := f.apply(cmd, current)
				if err != nil {
					return errors.Annotate(err, "updating camera")
				}
				if _, err := e.reg.Update(ctx, args[0], rec); err != nil {
					return errors.Annotate(err, "updating camera")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %q.\n", rec.Normalized().DeviceName)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newCamerasDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a camera",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, e *env) error {
				records, err := e.reg.Delete(ctx, args[0])
				if err != nil {
					return errors.Annotate(err, "deleting camera")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q (%d cameras left).\n", args[0], len(records))
				return nil
			})
		},
	}
}

func newCamerasURICmd(o *rootOptions) *cobra.Command {
	var redact bool
	cmd := &cobra.Command{
		Use:   "uri NAME",
		Short: "Print the stream URI of a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, e *env) error {
				rec, err := e.reg.Get(ctx, args[0])
				if err != nil {
					return errors.Annotate(err, "fetching camera")
				}
				uri := camera.StreamURI(rec, e.cfg.URIOptions())
				if redact {
					uri = camera.RedactURI(uri)
				}
				if o.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"name": rec.DeviceName, "uri": uri})
				}
				fmt.Fprintln(cmd.OutOrStdout(), uri)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&redact, "redact", false, "Leave the credentials out")
	return cmd
}

func newCamerasProbeCmd(o *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe NAME",
		Short: "Check that a camera answers RTSP DESCRIBE",
		Long:  `Connects to the camera and lists the media it advertises. No video is read.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, e *env) error {
				rec, err := e.reg.Get(ctx, args[0])
				if err != nil {
					return errors.Annotate(err, "fetching camera")
				}
				if !cmd.Flags().Changed("timeout") {
					timeout = e.cfg.ProbeTimeout()
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "Probing %s (%s) ...\n", rec.DeviceName, rec.Endpoint())
				res, err := probe.Probe(ctx, camera.StreamURI(rec, e.cfg.URIOptions()), timeout)
				if err != nil {
					return errors.Annotatef(err, "probing %q", rec.DeviceName)
				}

				if o.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s answered in %s\n", res.Endpoint, res.Elapsed.Round(time.Millisecond))
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
				fmt.Fprintln(tw, "MEDIA\tCODECS")
				fmt.Fprintln(tw, "-----\t------")
				for _, m := range res.Medias {
					fmt.Fprintf(tw, "%s\t%s\n", m.Type, strings.Join(m.Codecs, ", "))
				}
				tw.Flush()
				if !res.HasVideo() {
					fmt.Fprintln(cmd.OutOrStdout(), "Warning: no video media advertised.")
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", probe.DefaultTimeout, "Give up after this long (default from probe.timeout_sec)")
	return cmd
}

func newCamerasMigrateCmd(o *rootOptions) *cobra.Command {
	var legacyKey string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert the old {name, url} camera list",
		Long: `Reads the legacy list, adds every camera whose name is free and removes
the legacy list once the result is saved. Entries that cannot be parsed are reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, e *env) error {
				key := legacyKey
				if key == "" {
					key = e.cfg.LegacyKey
				}
				report, err := e.reg.MigrateLegacy(ctx, key)
				if err != nil {
					return errors.Annotate(err, "migrating cameras")
				}
				if o.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Migrated %d cameras, skipped %d.\n", len(report.Migrated), len(report.Skipped))
				for _, s := range report.Skipped {
					fmt.Fprintf(out, "  skipped %q: %s\n", s.Name, s.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&legacyKey, "key", "", "Legacy storage key (default from storage.legacy_key)")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
