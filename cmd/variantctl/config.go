package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/variantctl/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate a variantctl.toml",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteTemplate(output, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote config template to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", config.DefaultFileName, "output path for config template")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Strictly validate a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Validate(input); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Validated config at %s\n", input)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", config.DefaultFileName, "config path to validate")
	return cmd
}
