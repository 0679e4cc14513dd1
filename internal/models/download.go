package models

// DownloadStatus is the per-file outcome of a materialization.
type DownloadStatus string

const (
	StatusWritten         DownloadStatus = "written"
	StatusSkippedExisting DownloadStatus = "skipped_existing"
	StatusFailedRemote    DownloadStatus = "failed_remote"
	StatusFailedLocal     DownloadStatus = "failed_local"
)

// Failed reports whether the status is one of the failure outcomes.
func (s DownloadStatus) Failed() bool {
	return s == StatusFailedRemote || s == StatusFailedLocal
}

type DownloadResult struct {
	RemotePath string         `json:"remote_path"`
	LocalPath  string         `json:"local_path"`
	Status     DownloadStatus `json:"status"`
	Bytes      int64          `json:"bytes"`
	Err        error          `json:"-"`
}

type FailedFile struct {
	RemotePath string         `json:"remote_path"`
	Status     DownloadStatus `json:"status"`
	Error      string         `json:"error"`
}

type DownloadSummary struct {
	RunID            string       `json:"run_id"`
	SourcePath       string       `json:"source_path"`
	Destination      string       `json:"destination"`
	Workers          int          `json:"workers"`
	FoldersListed    int          `json:"folders_listed"`
	FilesWritten     int          `json:"files_written"`
	FilesSkipped     int          `json:"files_skipped"`
	FilesFailed      int          `json:"files_failed"`
	Failed           []FailedFile `json:"failed,omitempty"`
	TotalSizeBytes   int64        `json:"total_size_bytes"`
	TotalSizeHuman   string       `json:"total_size_human"`
	OperationTime    string       `json:"operation_time"`
	DownloadDuration string       `json:"download_duration"`
	Archive          *ArchiveInfo `json:"archive,omitempty"`
}
