package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"perlsense/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Long: `Config prints the configuration after the config file and the global
flags were applied. The output is a valid ` + config.FileName + `.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e := envFrom(cmd)
		data, err := config.Encode(e.cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		src := e.configPath
		if src == "" {
			src = "defaults"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", src)
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
