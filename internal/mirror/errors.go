package mirror

import "fmt"

// RemoteListError is a failed listing call. It aborts the whole operation.
type RemoteListError struct {
	Path string
	// Op is the remote call that failed: list_folder or list_folder_continue.
	Op  string
	Err error
}

func (e *RemoteListError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteListError) Unwrap() error { return e.Err }

// RemoteDownloadError is a failed content fetch for a single file.
type RemoteDownloadError struct {
	Path string
	Err  error
}

func (e *RemoteDownloadError) Error() string {
	return fmt.Sprintf("download %q: %v", e.Path, e.Err)
}

func (e *RemoteDownloadError) Unwrap() error { return e.Err }

// FilesystemError is a local failure while materializing a single file.
type FilesystemError struct {
	Path string
	Op   string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
