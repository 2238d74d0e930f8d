package domain

import "time"

const MaxWatcherErrors = 10

type WatcherError struct {
	OccurredAt time.Time `json:"occurred_at"`
	File       string    `json:"file,omitempty"`
	Message    string    `json:"message"`
}

type WatcherStatus struct {
	IsRunning             bool           `json:"is_running"`
	WatchFolder           string         `json:"watch_folder"`
	FilesInQueue          int            `json:"files_in_queue"`
	LastScanAt            *time.Time     `json:"last_scan_at"`
	CurrentFileInProgress string         `json:"current_file_in_progress,omitempty"`
	RecentErrors          []WatcherError `json:"recent_errors"`
}

// InboxFile is one entry of a watch folder listing.
type InboxFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// ScanReport summarizes one pass over the watch folder.
type ScanReport struct {
	Folder     string    `json:"folder"`
	Discovered int       `json:"discovered"`
	Ingested   int       `json:"ingested"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
