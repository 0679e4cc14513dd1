// Package mirror walks a remote folder tree and materializes it on the local
// filesystem.
package mirror

import (
	"context"

	"dbxdl/internal/models"
	"dbxdl/internal/remote"
)

const (
	opListFolder         = "list_folder"
	opListFolderContinue = "list_folder_continue"
)

// ListAll returns every entry of the folder at path, following continuation
// cursors until the listing is exhausted. Entries keep page order. Nothing is
// returned if any page fails.
func ListAll(ctx context.Context, client remote.Client, path string) ([]models.Entry, error) {
	page, err := client.ListFolder(ctx, path)
	if err != nil {
		return nil, &RemoteListError{Path: path, Op: opListFolder, Err: err}
	}

	entries := page.Entries
	for page.HasMore {
		page, err = client.ListFolderContinue(ctx, page.Cursor)
		if err != nil {
			return nil, &RemoteListError{Path: path, Op: opListFolderContinue, Err: err}
		}
		entries = append(entries, page.Entries...)
	}
	return entries, nil
}

// ListDir returns the direct children of path for display.
func ListDir(ctx context.Context, client remote.Client, path string) ([]models.Entry, error) {
	return ListAll(ctx, client, path)
}
