package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dbxdl/internal/models"
	"dbxdl/internal/remote"
)

// Materializer writes remote files under a local download root.
type Materializer struct {
	client remote.Client
	root   string
	logger *slog.Logger
}

func NewMaterializer(client remote.Client, root string, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{client: client, root: filepath.Clean(root), logger: logger}
}

// LocalPath maps a remote path onto the download root. Paths that would
// resolve outside the root are rejected.
func (m *Materializer) LocalPath(remotePath string) (string, error) {
	rel := filepath.FromSlash(strings.TrimLeft(remotePath, "/"))
	local := filepath.Join(m.root, rel)

	r, err := filepath.Rel(m.root, local)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("remote path %q escapes download root", remotePath)
	}
	return local, nil
}

// Download materializes a single file entry. An existing local file is left
// untouched and no remote call is made. Failures are reported in the result,
// never as a panic or a fatal error.
func (m *Materializer) Download(ctx context.Context, entry models.Entry) models.DownloadResult {
	result := models.DownloadResult{RemotePath: entry.Path}

	local, err := m.LocalPath(entry.Path)
	if err != nil {
		return m.fail(result, models.StatusFailedLocal, &FilesystemError{Path: entry.Path, Op: "resolve", Err: err})
	}
	result.LocalPath = local

	if _, err := os.Stat(local); err == nil {
		result.Status = models.StatusSkippedExisting
		m.logger.Debug("skipping existing file", "path", entry.Path)
		return result
	} else if !errors.Is(err, fs.ErrNotExist) {
		return m.fail(result, models.StatusFailedLocal, &FilesystemError{Path: local, Op: "stat", Err: err})
	}

	dir := filepath.Dir(local)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return m.fail(result, models.StatusFailedLocal, &FilesystemError{Path: dir, Op: "mkdir", Err: err})
	}

	body, err := m.client.Download(ctx, entry.Path)
	if err != nil {
		return m.fail(result, models.StatusFailedRemote, &RemoteDownloadError{Path: entry.Path, Err: err})
	}
	defer body.Close()

	n, err := m.write(local, entry.Path, body)
	if err != nil {
		var remoteErr *RemoteDownloadError
		if errors.As(err, &remoteErr) {
			return m.fail(result, models.StatusFailedRemote, err)
		}
		return m.fail(result, models.StatusFailedLocal, err)
	}

	result.Status = models.StatusWritten
	result.Bytes = n
	m.logger.Info("downloaded file", "path", entry.Path, "bytes", n)
	return result
}

// write streams src into a temporary sibling of local and renames it into
// place, so an interrupted transfer never leaves a partial file behind.
func (m *Materializer) write(local, remotePath string, src io.Reader) (int64, error) {
	dir, base := filepath.Split(local)
	tmp, err := os.CreateTemp(dir, "."+base+".*.part")
	if err != nil {
		return 0, &FilesystemError{Path: local, Op: "create", Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	sr := &sourceReader{r: src}
	n, err := io.Copy(tmp, sr)
	if err != nil {
		if sr.err != nil {
			return n, &RemoteDownloadError{Path: remotePath, Err: sr.err}
		}
		return n, &FilesystemError{Path: local, Op: "write", Err: err}
	}
	if err := tmp.Chmod(0644); err != nil {
		return n, &FilesystemError{Path: local, Op: "chmod", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return n, &FilesystemError{Path: local, Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, local); err != nil {
		os.Remove(tmpName)
		committed = true
		return n, &FilesystemError{Path: local, Op: "rename", Err: err}
	}
	committed = true
	return n, nil
}

func (m *Materializer) fail(result models.DownloadResult, status models.DownloadStatus, err error) models.DownloadResult {
	result.Status = status
	result.Err = err
	m.logger.Error("failed to download file", "path", result.RemotePath, "status", status, "error", err)
	return result
}

// sourceReader remembers read errors from the remote stream so they can be
// told apart from local write errors after io.Copy.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
