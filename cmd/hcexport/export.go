package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"hcexport/pkg/auth"
	"hcexport/pkg/config"
	apierrors "hcexport/pkg/errors"
	"hcexport/pkg/export"
	"hcexport/pkg/hipchat"
	"hcexport/pkg/logger"
	"hcexport/pkg/ui"
)

var (
	// Export command flags
	userToken   string
	listOnly    bool
	rawJSON     bool
	outputDir   string
	userFilter  string
	failFast    bool
	maxAttempts int
	tokenLabel  string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all 1-to-1 message history",
	Long: `Export every 1-to-1 conversation visible to the given user token.

The token can be supplied three ways:
  - The --user-token flag
  - The HCEXPORT_USER_TOKEN environment variable
  - A stored token (use 'hcexport auth login' to store one)

Output lands under <output>/<owner>/<counterpart>/ as numbered JSON and
HTML pages, with shared files saved next to them. Users with no message
history produce no directory at all.`,
	Example: `  # Export everything with a token on the command line
  hcexport export --user-token 0123456789012345678901234567890123456789

  # List the users that would be exported, without exporting
  hcexport export --list

  # Export a single user's conversation
  hcexport export --user "Alice Smith"`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&userToken, "user-token", "u", "", "HipChat user token (40 characters)")
	exportCmd.Flags().BoolVarP(&listOnly, "list", "l", false, "list users instead of exporting")
	exportCmd.Flags().BoolVar(&rawJSON, "raw-json", true, "write raw JSON snapshots next to the HTML transcripts")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: ./hipchat_export)")
	exportCmd.Flags().StringVar(&userFilter, "user", "", "export only the user with this exact name")
	exportCmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort the run on the first user that fails")
	exportCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "maximum attempts per API call when throttled")
	exportCmd.Flags().StringVarP(&tokenLabel, "account", "a", "", "use a specific stored token")
}

func runExport(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if userToken != "" {
		flags["user-token"] = userToken
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if cmd.Flags().Changed("raw-json") {
		flags["raw-json"] = rawJSON
	}
	if listOnly {
		flags["list"] = true
	}
	if userFilter != "" {
		flags["user"] = userFilter
	}
	if failFast {
		flags["fail-fast"] = true
	}
	if maxAttempts > 0 {
		flags["max-attempts"] = maxAttempts
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fail(err)
	}

	// Fall back to a stored token when neither flag, env, nor config file
	// provided one.
	if cfg.HipChat.UserToken == "" {
		if token := storedToken(); token != nil {
			cfg.HipChat.UserToken = token.Value
		}
	}

	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fail(err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("hcexport starting")

	pipeline, err := export.New(cfg)
	if err != nil {
		fail(err)
	}

	if cfg.Export.ListOnly {
		owner, users, err := pipeline.Directory()
		if err != nil {
			fail(err)
		}
		ui.PrintInfo("Token owner", owner.Name)
		printDirectory(users)
		return
	}

	results, err := pipeline.Run()
	if err != nil {
		fail(err)
	}

	var pages, messages, attachments int
	for _, res := range results {
		pages += res.Pages
		messages += res.Messages
		attachments += res.Attachments
	}
	ui.PrintSuccess(fmt.Sprintf("Exported %d messages across %d users (%d pages, %d files)",
		messages, len(results), pages, attachments))
}

// printDirectory prints the exportable users sorted by name.
func printDirectory(users map[string]hipchat.User) {
	names := make([]string, 0, len(users))
	byName := make(map[string]hipchat.User, len(users))
	for _, user := range users {
		names = append(names, user.Name)
		byName[user.Name] = user
	}
	sort.Strings(names)
	for _, name := range names {
		user := byName[name]
		fmt.Printf("%s <%s>, id: %s\n", user.Name, user.Email, user.ID)
	}
}

// storedToken looks up a token from the credential manager; nil when
// nothing is stored or the stores are unavailable.
func storedToken() *auth.Token {
	manager, err := auth.NewManager()
	if err != nil {
		return nil
	}
	if tokenLabel != "" {
		token, err := manager.Retrieve(tokenLabel)
		if err != nil {
			ui.PrintError("Stored token not found", tokenLabel)
			os.Exit(1)
		}
		return token
	}
	token, err := manager.RetrieveDefault()
	if err != nil {
		return nil
	}
	return token
}

// fail prints the error and exits: usage errors exit 2 with a help hint,
// everything else exits 1.
func fail(err error) {
	ui.PrintError("Export failed", err.Error())
	if apierrors.IsUsage(err) {
		fmt.Fprintln(os.Stderr, "for help use --help")
		os.Exit(2)
	}
	os.Exit(1)
}
