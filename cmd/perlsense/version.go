package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"perlsense/internal/version"
)

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show perlsense build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		out := cmd.OutOrStdout()
		switch format {
		case "pretty":
			_, err = fmt.Fprint(out, version.Long())
			return err
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(versionPayload{
				Tool:      "perlsense",
				Version:   version.Version,
				GitCommit: version.GitCommit,
				BuildDate: version.BuildDate,
				Go:        runtime.Version(),
			})
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}
