package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hcexport/pkg/config"
	"hcexport/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage hcexport configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (HCEXPORT_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.hcexport.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources.

The user token is masked for security.`,
	Run: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".hcexport.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# hcexport configuration file
#
# Every option can also be set through environment variables prefixed
# with HCEXPORT_, for example HCEXPORT_USER_TOKEN.

# HipChat API settings
hipchat:
  # API base URL; change for self-hosted HipChat Server installs
  base_url: "https://api.hipchat.com"

  # 40 character user token with view_group and view_messages scopes.
  # Prefer 'hcexport auth login' or HCEXPORT_USER_TOKEN over putting the
  # token in this file.
  user_token: ""

  # Per-request timeout
  request_timeout: 30s

# Rate limiting
rate_limit:
  # Minimum spacing between consecutive API calls
  min_interval: 500ms

  # Calls allowed before a proactive cooldown, and that cooldown
  window_calls: 95
  window_cooldown: 5m

  # Pause after the API answers 429, and the attempt ceiling per call
  retry_cooldown: 30s
  max_attempts: 5

# Output
output:
  base_directory: "./hipchat_export"
  raw_json: true

# Export behavior
export:
  page_size: 1000

# Logging
logging:
  # debug, info, warn, error
  level: "info"
  # optional log file, empty logs to stderr only
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store your token with 'hcexport auth login'")
	fmt.Println("2. Start the export with 'hcexport export'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	displayCfg := *cfg
	if displayCfg.HipChat.UserToken != "" {
		displayCfg.HipChat.UserToken = sanitizeToken(displayCfg.HipChat.UserToken)
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (HCEXPORT_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (auto-discovered)")
	}
	fmt.Println("4. Default values")
}
