package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eargollo/docqueue/internal/fields"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Print the index field names extraction workers write",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(map[string]any{
			"fields":     cfg.Fields,
			"tag_prefix": fields.TagPrefix,
			"example_metadata": map[string]string{
				"Content-Type": cfg.Fields.ForMetadata("Content-Type"),
			},
		})
	},
}
