package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"dbxdl/internal/mirror"
	"dbxdl/internal/models"
	"dbxdl/internal/remote"
	"dbxdl/pkg/utils"
)

var downloadRecursiveCmd = &cobra.Command{
	Use:     "download-recursive [path]",
	Aliases: []string{"dl"},
	Short:   "Mirror a remote folder tree into the download directory",
	Long: `Mirror a remote folder and everything below it into the download directory.

Files that already exist locally are skipped, so an interrupted run can simply
be started again. Folders are walked by a pool of up to 8 workers. A failed
file is reported in the summary without stopping the run; a failed folder
listing stops it.

The path defaults to the root of the account or bucket. When to_dl is set in
the settings file only those top-level folders are walked.`,
	Example: `  # Mirror the whole account
  dbxdl download-recursive

  # Mirror one folder into a different directory
  dbxdl dl /photos --dest /mnt/backup

  # Mirror with 4 workers and zip the result
  dbxdl dl /projects --workers 4 --archive=projects.zip

  # Zip into a timestamped file next to the download directory
  dbxdl dl /projects --archive

  # Give up after 30 minutes
  dbxdl dl --timeout 1800 --verbose`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownloadRecursive,
}

func runDownloadRecursive(cmd *cobra.Command, args []string) error {
	path := remotePath(args)
	workers, _ := cmd.Flags().GetInt("workers")
	dest, _ := cmd.Flags().GetString("dest")
	archivePath, _ := cmd.Flags().GetString("archive")
	timeout, _ := cmd.Flags().GetInt("timeout")

	if dest == "" {
		dest = cfg.DownloadDir
	}
	if workers == 0 {
		workers = cfg.Workers
	}

	ctx, stop := commandContext(cmd)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	client, err := openRemote(ctx)
	if err != nil {
		return err
	}
	defer remote.Close(client)

	if isVerbose(cmd) {
		cmd.PrintErrf("Starting download operation...\n")
		cmd.PrintErrf("  Path: %q\n", path)
		cmd.PrintErrf("  Destination: %s\n", dest)
	}

	pool := mirror.NewPool(client, dest, mirror.Options{
		Workers:   workers,
		AllowList: cfg.ToDownload,
		Logger:    logger,
	})
	summary, err := pool.Run(ctx, path)
	if err != nil {
		return err
	}

	if archivePath != "" {
		summary.Archive, err = archiveMirror(client, dest, path, archivePath)
		if err != nil {
			return err
		}
	}

	return utils.WriteJSON(cmd.OutOrStdout(), summary)
}

// autoArchive is the --archive value used when the flag is given without a
// file name.
const autoArchive = "auto"

// archiveMirror zips the local copy of path. With autoArchive the archive is
// named after the mirrored folder and placed next to the download directory.
func archiveMirror(client remote.Client, dest, path, archivePath string) (*models.ArchiveInfo, error) {
	local, err := mirror.NewMaterializer(client, dest, logger).LocalPath(path)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidatePaths([]string{local}); err != nil {
		return nil, fmt.Errorf("nothing to archive: %w", err)
	}
	if archivePath == autoArchive {
		archivePath = filepath.Join(filepath.Dir(filepath.Clean(dest)), utils.GenerateArchiveName([]string{local}, ".zip"))
	}

	info, err := utils.CreateArchive([]string{local}, archivePath)
	if err != nil {
		if cleanupErr := utils.CleanupTempFile(archivePath); cleanupErr != nil {
			logger.Warn("failed to remove incomplete archive", "path", archivePath, "error", cleanupErr)
		}
		return nil, err
	}
	logger.Info("archive created", "path", info.ArchivePath, "size", utils.FormatBytes(info.CompressedSize))
	return info, nil
}

func init() {
	downloadRecursiveCmd.Flags().IntP("workers", "w", 0, "Maximum number of workers, 1-8 (default: workers from config)")
	downloadRecursiveCmd.Flags().StringP("dest", "d", "", "Local download directory (default: dl_dir from config)")
	downloadRecursiveCmd.Flags().StringP("archive", "a", "", "Zip the mirrored folder after the run (--archive=<file>, or a timestamped name when no file is given)")
	downloadRecursiveCmd.Flags().Lookup("archive").NoOptDefVal = autoArchive
	downloadRecursiveCmd.Flags().Int("timeout", 0, "Timeout in seconds for the operation (0: no timeout)")

	downloadRecursiveCmd.SetUsageTemplate(usageTemplate)
}
