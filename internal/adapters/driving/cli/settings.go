package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// settingKeys is the catalogue of supported settings, in display
// order. Unknown keys can still be stored and read back, they just do
// not show up in list output.
var settingKeys = []string{
	"embedding.base_url",
	"embedding.api_key",
	"embedding.model",
	"embedding.dimensions",
	"llm.api_key",
	"llm.base_url",
	"llm.model",
	"qdrant.url",
	"qdrant.api_key",
	"sqlite.path",
	"rerank.url",
	"github.token",
	"gdrive.token",
	"pipeline.max_chars",
	"pipeline.top_k",
	"pipeline.context_limit",
	"pipeline.concurrency",
	"pipeline.section_workers",
	"collection.name",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure providers, endpoints, and pipeline options.

Settings live in a TOML file under the user config directory.
Credentials and endpoints can also come from environment variables,
which take precedence over stored values.`,
	RunE: runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key [key]",
	Short: "Store a secret without echoing it",
	Long: `Prompt for a value with terminal echo disabled and store it under
the given key. Intended for API keys and tokens.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsSetKey,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings with their effective values",
	RunE:  runSettingsList,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	RunE:  runSettingsPath,
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	value, ok := configStore.Get(args[0])
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	cmd.Printf("%v\n", value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := configStore.Set(key, parseSettingValue(args[1])); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	cmd.Printf("Updated %s\n", key)
	return nil
}

func runSettingsSetKey(cmd *cobra.Command, args []string) error {
	key := args[0]
	cmd.Printf("Enter value for %s: ", key)
	value := readPassword()
	cmd.Println()
	if value == "" {
		return errors.New("value must not be empty")
	}
	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	cmd.Printf("Updated %s (%s)\n", key, maskAPIKey(value))
	return nil
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	for _, key := range settingKeys {
		value, ok := configStore.Get(key)
		display := "(not set)"
		if ok {
			display = fmt.Sprintf("%v", value)
			if isSecretKey(key) {
				display = maskAPIKey(display)
			}
		}
		cmd.Printf("%-26s %s\n", key, display)
	}
	return nil
}

func runSettingsPath(cmd *cobra.Command, _ []string) error {
	cmd.Println(configStore.Path())
	return nil
}

// Helper functions.

// parseSettingValue keeps booleans and integers typed so numeric
// settings round-trip through TOML as numbers.
func parseSettingValue(raw string) any {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if val, err := strconv.Atoi(raw); err == nil {
		return val
	}
	return raw
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "token")
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
