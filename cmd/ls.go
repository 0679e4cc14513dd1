package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dbxdl/internal/mirror"
	"dbxdl/internal/remote"
	"dbxdl/pkg/utils"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the entries of a remote folder",
	Long:  `List the direct children of a remote folder as id, name and path columns.`,
	Example: `  # List the account root
  dbxdl ls

  # List a folder in an S3 bucket
  dbxdl ls /backups --provider s3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLS,
}

func runLS(cmd *cobra.Command, args []string) error {
	path := remotePath(args)

	ctx, stop := commandContext(cmd)
	defer stop()

	client, err := openRemote(ctx)
	if err != nil {
		return err
	}
	defer remote.Close(client)

	entries, err := mirror.ListDir(ctx, client, path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listing path \"%s\"...\n", path)
	if len(entries) == 0 {
		fmt.Fprintln(out, "(no entries)")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.ID, e.Name, e.Path})
	}
	for _, line := range utils.FormatTable(rows) {
		fmt.Fprintln(out, line)
	}
	return nil
}

func init() {
	lsCmd.SetUsageTemplate(usageTemplate)
}
