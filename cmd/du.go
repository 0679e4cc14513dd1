package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dbxdl/internal/mirror"
	"dbxdl/internal/models"
	"dbxdl/internal/remote"
	"dbxdl/pkg/utils"
)

var duCmd = &cobra.Command{
	Use:   "du [path]",
	Short: "Show the total size of a remote folder tree",
	Long: `Walk a remote folder and every folder below it and print the total size of
all files, in bytes and gigabytes. Nothing is downloaded.

With --check-space the total is compared with the free space of the local
download directory.`,
	Example: `  # Size of the whole account
  dbxdl du

  # Size of one folder as JSON
  dbxdl du /photos --json

  # Will it fit?
  dbxdl du /photos --check-space`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDU,
}

func runDU(cmd *cobra.Command, args []string) error {
	path := remotePath(args)
	asJSON, _ := cmd.Flags().GetBool("json")
	checkSpace, _ := cmd.Flags().GetBool("check-space")

	ctx, stop := commandContext(cmd)
	defer stop()

	client, err := openRemote(ctx)
	if err != nil {
		return err
	}
	defer remote.Close(client)

	if !asJSON && !checkSpace {
		total, err := mirror.DiskUsage(ctx, client, path)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), utils.FormatUsage(path, total))
		return nil
	}

	usage, err := mirror.SumUsage(ctx, client, path)
	if err != nil {
		return err
	}

	result := &models.UsageResult{
		Path:           path,
		TotalSizeBytes: usage.Bytes,
		TotalSizeGB:    float64(usage.Bytes) / 1e9,
		TotalSizeHuman: utils.FormatBytes(usage.Bytes),
		Files:          usage.Files,
		Folders:        usage.Folders,
	}
	if checkSpace {
		free, err := utils.FreeBytes(cfg.DownloadDir)
		if err != nil {
			return err
		}
		fits := uint64(usage.Bytes) <= free
		result.LocalDir = cfg.DownloadDir
		result.LocalFreeBytes = &free
		result.FitsLocally = &fits
	}

	if asJSON {
		return utils.WriteJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, utils.FormatUsage(path, usage.Bytes))
	fmt.Fprintf(out, "%s: %s free", result.LocalDir, utils.FormatBytes(int64(*result.LocalFreeBytes)))
	if *result.FitsLocally {
		fmt.Fprintln(out, ", fits")
	} else {
		fmt.Fprintln(out, ", does not fit")
	}
	return nil
}

func init() {
	duCmd.Flags().Bool("json", false, "Print the result as JSON")
	duCmd.Flags().Bool("check-space", false, "Compare the total with free space in the download directory")

	duCmd.SetUsageTemplate(usageTemplate)
}
