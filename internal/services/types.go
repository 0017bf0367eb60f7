package services

import "github.com/agentdesk/workdir/internal/models"

// DownloadResult is the outcome for one file of a batch download.
type DownloadResult struct {
	Entry    models.FileEntry
	Location string
	Err      error
}

// DeleteResult is the outcome for one entry of a batch delete.
type DeleteResult struct {
	Entry models.FileEntry
	Err   error
}

// ListOptions narrows and orders a listing for display.
type ListOptions struct {
	Include []string
	Exclude []string
	Search  []string
}
