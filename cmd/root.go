package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dbxdl/config"
	"dbxdl/internal/remote"
	"dbxdl/pkg/utils"
)

// Version is set at build time with -ldflags "-X dbxdl/cmd.Version=...".
var Version = "dev"

var (
	cfg    *config.Config
	logger = slog.Default()

	// newRemote is replaced in tests.
	newRemote = remote.New
)

var rootCmd = &cobra.Command{
	Use:   "dbxdl",
	Short: "Mirror a cloud folder tree onto the local disk",
	Long: `dbxdl mirrors a remote folder tree (Dropbox, S3 or any gocloud blob bucket)
into a local download directory, reports the size of remote subtrees and lists
remote folders.

Settings are read from dbx-dl.ini next to the executable unless --config is
given. DBXDL_* environment variables override values from the file.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the command line and reports a fatal error as JSON on stderr.
func Execute() error {
	c, err := rootCmd.ExecuteC()
	if err != nil {
		utils.PrintError(err, c.Name())
	}
	return err
}

func init() {
	rootCmd.Version = Version

	rootCmd.AddCommand(downloadRecursiveCmd)
	rootCmd.AddCommand(duCmd)
	rootCmd.AddCommand(lsCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Settings file (default: dbx-dl.ini next to the executable)")
	rootCmd.PersistentFlags().StringP("provider", "p", "", "Override provider from config (dropbox, s3, blob)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if !needsConfig(cmd) {
		return nil
	}

	level := slog.LevelInfo
	if isVerbose(cmd) {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}

	if provider, _ := cmd.Flags().GetString("provider"); provider != "" && provider != loaded.Provider {
		loaded.Provider = provider
		if err := loaded.Validate(); err != nil {
			return err
		}
	}

	cfg = loaded
	logger.Debug("configuration loaded", "file", cfg.File, "provider", cfg.Provider)
	return nil
}

// needsConfig is false for cobra's built-in help and shell completion
// commands, which must work without a settings file.
func needsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

// commandContext is cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func openRemote(ctx context.Context) (remote.Client, error) {
	return newRemote(ctx, cfg)
}

func remotePath(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`
