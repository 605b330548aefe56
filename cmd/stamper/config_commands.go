package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"stamper/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the stamper configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(), newConfigShowCommand())
	return configCmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, usedDefaults, err := config.Load(configPath)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if usedDefaults {
				fmt.Fprintln(stdout, "# built-in defaults (no config file found)")
			} else {
				fmt.Fprintf(stdout, "# loaded from %s\n", resolvedPath)
			}
			encoded, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = stdout.Write(encoded)
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "path", "p", "", "Configuration file to show (defaults to the standard location)")
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(targetPath)
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			expanded, err := config.ExpandPath(path)
			if err != nil {
				return err
			}

			if _, statErr := os.Stat(expanded); statErr == nil && !overwrite {
				return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", expanded)
			} else if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
				return statErr
			}

			if err := config.CreateSample(expanded); err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Sample configuration written to %s\n", expanded)
			fmt.Fprintln(stdout, "Edit the watermark text, directories, and hook targets, then run `stamper start`.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the sample config (defaults to the standard location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing config file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Check the configuration file for problems",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, usedDefaults, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if usedDefaults {
				fmt.Fprintln(stdout, "No config file found, built-in defaults are valid")
			} else {
				fmt.Fprintf(stdout, "Configuration at %s is valid\n", resolvedPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "path", "p", "", "Configuration file to validate (defaults to the standard location)")
	return cmd
}
