package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"contractbot/internal/config"
	"contractbot/internal/task"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and scaffold configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file and task definitions",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config and task definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		// PersistentPreRunE has already validated cfg itself.
		r, err := task.LoadOrDefault(cfg.Tasks.File)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "OK: %d task(s) %v\n", len(r.Kinds()), kindNames(r))
		for _, c := range r.Configs() {
			fmt.Fprintf(out, "  %s requires %s\n", c.Kind, strings.Join(c.RequiredKeys(), ", "))
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite existing files")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	c := config.DefaultConfig()
	if dataDir != "" {
		c.DataDir = dataDir
	}
	if c.Tasks.File == "" {
		c.Tasks.File = filepath.Join(c.DataDir, "tasks.yaml")
	}

	for _, p := range []string{configPath, c.Tasks.File} {
		if _, err := os.Stat(p); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", p)
		}
	}
	if err := c.Save(configPath); err != nil {
		return err
	}
	if err := task.WriteFile(c.Tasks.File, task.DefaultRegistry()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\nWrote %s\n", configPath, c.Tasks.File)
	return nil
}
