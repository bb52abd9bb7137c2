// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"matrun-cli/internal/config"

	"github.com/spf13/cobra"
)

// configCmd manages the matrun configuration file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage matrun configuration",
	Long: `Manage matrun configuration.

Configuration is stored in:
  - Linux: ~/.config/matrun/config.cue
  - macOS: ~/Library/Application Support/matrun/config.cue
  - Windows: %APPDATA%\matrun\config.cue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfigFile()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(args[0], args[1])
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateCUE(loadedConfig()))
			return nil
		},
	})
}

func showConfig() error {
	cfg := loadedConfig()

	fmt.Println(TitleStyle.Render("Current Configuration"))
	fmt.Println()

	cfgDir, dirErr := config.ConfigDir()
	if dirErr == nil {
		cfgPath := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
		if fileExistsCheck(cfgPath) {
			fmt.Printf("%s: %s\n", CmdStyle.Render("Config file"), cfgPath)
		} else {
			fmt.Printf("%s: %s\n", CmdStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
		}
	} else {
		fmt.Printf("%s: %s\n", CmdStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Println()

	fmt.Printf("%s: %s\n", CmdStyle.Render("concurrency"), SuccessStyle.Render(strconv.Itoa(cfg.Concurrency)))
	fmt.Printf("%s: %s\n", CmdStyle.Render("fail_fast"), SuccessStyle.Render(strconv.FormatBool(cfg.FailFast)))
	if cfg.PerCommandTimeout != "" {
		fmt.Printf("%s: %s\n", CmdStyle.Render("per_command_timeout"), SuccessStyle.Render(cfg.PerCommandTimeout))
	}
	fmt.Printf("%s: %s\n", CmdStyle.Render("grace_period"), SuccessStyle.Render(cfg.GracePeriod))
	fmt.Printf("%s: %s\n", CmdStyle.Render("container_engine"), SuccessStyle.Render(string(cfg.ContainerEngine)))
	fmt.Printf("%s: %s\n", CmdStyle.Render("ui.color_scheme"), SuccessStyle.Render(string(cfg.UI.ColorScheme)))
	fmt.Printf("%s: %s\n", CmdStyle.Render("ui.verbose"), SuccessStyle.Render(strconv.FormatBool(cfg.UI.Verbose)))
	fmt.Printf("%s: %s\n", CmdStyle.Render("serve.addr"), SuccessStyle.Render(cfg.Serve.Addr))

	if cfg.Store.Enabled {
		fmt.Printf("%s: %s\n", CmdStyle.Render("store"),
			SuccessStyle.Render(fmt.Sprintf("%s/%s", cfg.Store.Endpoint, cfg.Store.Bucket)))
	} else {
		fmt.Printf("%s: %s\n", CmdStyle.Render("store"), SubtitleStyle.Render("disabled"))
	}

	return nil
}

func initConfigFile() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	if err = config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Printf("%s Created default configuration at %s/config.cue\n", SuccessStyle.Render("✓"), cfgDir)
	return nil
}

func showConfigPath() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	fmt.Printf("Config directory: %s\n", cfgDir)
	fmt.Printf("Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}

func setConfigValue(key, value string) error {
	cfg := loadedConfig()

	switch key {
	case "concurrency":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid concurrency: must be a positive integer")
		}
		cfg.Concurrency = n

	case "fail_fast":
		cfg.FailFast = value == "true" || value == "1"

	case "per_command_timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid per_command_timeout: %w", err)
		}
		cfg.PerCommandTimeout = value

	case "grace_period":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid grace_period: %w", err)
		}
		cfg.GracePeriod = value

	case "container_engine":
		if value != "podman" && value != "docker" {
			return fmt.Errorf("invalid container_engine: must be 'podman' or 'docker'")
		}
		cfg.ContainerEngine = config.ContainerEngine(value)

	case "ui.verbose":
		cfg.UI.Verbose = value == "true" || value == "1"

	case "ui.color_scheme":
		cfg.UI.ColorScheme = config.ColorScheme(value)

	case "store.enabled":
		cfg.Store.Enabled = value == "true" || value == "1"

	case "store.endpoint":
		cfg.Store.Endpoint = value

	case "store.bucket":
		cfg.Store.Bucket = value

	case "serve.addr":
		cfg.Serve.Addr = value

	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: concurrency, fail_fast, per_command_timeout, grace_period, container_engine, ui.verbose, ui.color_scheme, store.enabled, store.endpoint, store.bucket, serve.addr", key)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

// fileExistsCheck checks if a file exists and is not a directory.
func fileExistsCheck(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
