package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hcexport/pkg/auth"
	"hcexport/pkg/config"
	"hcexport/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage HipChat user tokens",
	Long: `Manage stored HipChat user tokens securely.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your token or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [label]",
	Short: "Store a HipChat user token securely",
	Long: `Store a HipChat user token in the system keychain or an encrypted file.

Generate a token from your HipChat account settings under API access.
The token must be a 40 character personal user token with the
view_group and view_messages scopes.`,
	Example: `  # Interactive login under the default label
  hcexport auth login

  # Store a second token under a named label
  hcexport auth login work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [label]",
	Short: "Remove a stored token",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

// tokensCmd represents the auth list command
var tokensCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tokens",
	Long:  `List all stored token labels with sanitized values.`,
	Run:   runTokens,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(tokensCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize token manager", err.Error())
		os.Exit(1)
	}

	label := "default"
	if len(args) > 0 {
		label = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(label); existing != nil {
		fmt.Printf("Token %q already exists. Replace it? (y/N): ", label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	var value string
	for {
		fmt.Print("HipChat user token (hidden): ")
		value, err = readPassword()
		if err != nil {
			ui.PrintError("Failed to read token", err.Error())
			os.Exit(1)
		}
		if len(value) != config.TokenLength {
			fmt.Printf("\nThat doesn't look like a user token: expected %d characters, got %d.\n",
				config.TokenLength, len(value))
			fmt.Print("Try again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	token := &auth.Token{Label: label, Value: value}
	if err := manager.Store(token); err != nil {
		ui.PrintError("Failed to store token", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Token saved: %s", label))
	fmt.Println("\nExport your history with:")
	fmt.Println("  $ hcexport export")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize token manager", err.Error())
		os.Exit(1)
	}

	label := "default"
	if len(args) > 0 {
		label = args[0]
	}

	if err := manager.Delete(label); err != nil {
		ui.PrintError("Failed to remove token", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Token removed: " + label)
}

func runTokens(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize token manager", err.Error())
		os.Exit(1)
	}

	tokens, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list tokens", err.Error())
		os.Exit(1)
	}
	if len(tokens) == 0 {
		ui.PrintInfo("No stored tokens", "Use 'hcexport auth login' to add one")
		return
	}

	ui.PrintHighlight("Stored Tokens")
	fmt.Println()
	for i, token := range tokens {
		fmt.Printf("%d. Label: %s\n", i+1, token.Label)
		fmt.Printf("   Token: %s\n", sanitizeToken(token.Value))
		fmt.Printf("   Last Modified: %s\n", token.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// sanitizeToken shows just enough of a token to identify it.
func sanitizeToken(value string) string {
	if len(value) < 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// readPassword reads a token from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
