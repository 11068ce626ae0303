package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"camera-viewer-go/internal/camera"
)

// Transfer formats for import and export.
const (
	formatJSON   = "json"
	formatYAML   = "yaml"
	formatLegacy = "legacy"
)

// formatFor picks the format from an explicit flag or the file extension.
func formatFor(flag, path string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(flag))
	if f == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			f = formatYAML
		default:
			f = formatJSON
		}
	}
	switch f {
	case formatJSON, formatYAML, formatLegacy:
		return f, nil
	case "yml":
		return formatYAML, nil
	}
	return "", errors.NotValidf("format %q", flag)
}

// encodeRecords renders records in format. The legacy format carries the
// full stream URI as configured by opts.
func encodeRecords(w io.Writer, records []camera.Record, format string, opts camera.URIOptions) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return errors.Annotate(err, "encoding YAML")
		}
		return errors.Annotate(enc.Close(), "encoding YAML")
	case formatLegacy:
		entries := make([]camera.LegacyEntry, len(records))
		for i, rec := range records {
			entries[i] = camera.ToLegacy(rec, opts)
		}
		return writeJSON(w, entries)
	}
	return writeJSON(w, records)
}

// decodeRecords parses a camera list. JSON input may be a bare array or the
// stored {"version", "cameras"} envelope.
func decodeRecords(data []byte, format string) ([]camera.Record, error) {
	var records []camera.Record
	switch format {
	case formatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, errors.NotValidf("YAML camera list: %v", err)
		}
	case formatLegacy:
		var entries []camera.LegacyEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, errors.NotValidf("legacy camera list: %v", err)
		}
		for _, e := range entries {
			rec, err := camera.FromLegacy(e)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	default:
		if err := json.Unmarshal(data, &records); err != nil {
			var envelope struct {
				Cameras []camera.Record `json:"cameras"`
			}
			if envErr := json.Unmarshal(data, &envelope); envErr != nil {
				return nil, errors.NotValidf("JSON camera list: %v", err)
			}
			records = envelope.Cameras
		}
	}
	return records, nil
}

func newCamerasImportCmd(o *rootOptions) *cobra.Command {
	var (
		format  string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Add cameras from a JSON or YAML file",
		Long: `Cameras whose name is already registered are overwritten in place, the rest
are appended. --replace makes the file the whole list. FILE "-" reads stdin.`,
		Example: `  camera-viewer cameras import cameras.yaml
  camera-viewer cameras export | ssh other camera-viewer cameras import --replace -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := formatFor(format, args[0])
			if err != nil {
				return errors.Annotate(err, "importing cameras")
			}
			data, err := readInput(args[0])
			if err != nil {
				return errors.Annotate(err, "importing cameras")
			}
			records, err := decodeRecords(data, f)
			if err != nil {
				return errors.Annotate(err, "importing cameras")
			}
			return o.withEnv(func(ctx context.Context, e *env) error {
				all, err := e.reg.Import(ctx, records, replace)
				if err != nil {
					return errors.Annotate(err, "importing cameras")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cameras (%d registered).\n", len(records), len(all))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "json, yaml or legacy (default from the file extension)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the whole list instead of merging")
	return cmd
}

func newCamerasExportCmd(o *rootOptions) *cobra.Command {
	var (
		format string
		output string
		redact bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all cameras as JSON or YAML",
		Example: `  camera-viewer cameras export --output cameras.yaml
  camera-viewer cameras export --format legacy --redact`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := formatFor(format, output)
			if err != nil {
				return errors.Annotate(err, "exporting cameras")
			}
			return o.withEnv(func(ctx context.Context, e *env) error {
				records, err := e.reg.Export(ctx, redact)
				if err != nil {
					return errors.Annotate(err, "exporting cameras")
				}

				if output == "" || output == "-" {
					return encodeRecords(cmd.OutOrStdout(), records, f, e.cfg.URIOptions())
				}
				file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return errors.Annotate(err, "exporting cameras")
				}
				if err := encodeRecords(file, records, f, e.cfg.URIOptions()); err != nil {
					file.Close()
					return errors.Annotate(err, "exporting cameras")
				}
				if err := file.Close(); err != nil {
					return errors.Annotate(err, "exporting cameras")
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d cameras to %s\n", len(records), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "json, yaml or legacy (default from the output extension)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&redact, "redact", false, "Leave passwords out")
	return cmd
}
