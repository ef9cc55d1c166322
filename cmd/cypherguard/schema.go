package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vanshika/cypherguard/internal/schema"
)

func newSchemaCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the graph schema",
	}
	cmd.AddCommand(newSchemaDumpCmd(root), newSchemaShowCmd(root))
	return cmd
}

func newSchemaDumpCmd(root *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the structured schema as YAML",
		Long:  "Introspect the database (or re-read --schema) and write the structured schema as YAML to --out or stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.loadSchema(cmd)
			if err != nil {
				return err
			}
			if out != "" {
				if err := schema.WriteFile(out, s); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d relationships to %s\n", len(s.Relationships), out)
				return nil
			}
			data, err := yaml.Marshal(s)
			if err != nil {
				return fmt.Errorf("encode schema: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "file to write instead of stdout")
	return cmd
}

func newSchemaShowCmd(root *rootOptions) *cobra.Command {
	var include, exclude []string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the schema as it appears in generation prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.loadSchema(cmd)
			if err != nil {
				return err
			}
			text, err := schema.Format(s, include, exclude)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "only these labels and relationship types")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "drop these labels and relationship types")
	cmd.MarkFlagsMutuallyExclusive("include", "exclude")
	return cmd
}
