package state

import (
	"fmt"
	"strings"

	"github.com/agentdesk/workdir/internal/api"
	"github.com/agentdesk/workdir/internal/constants"
	"github.com/agentdesk/workdir/internal/models"
)

// UploadPlan splits a batch into what will be sent and what was refused.
type UploadPlan struct {
	Accepted []models.UploadFile
	Rejected []*api.ValidationError
}

// PlanUpload applies the client-side size limit. Non-archive files larger
// than constants.MaxUploadSize are rejected; archives are sent whatever
// their size. Input order is preserved in both lists.
func PlanUpload(files []models.UploadFile) UploadPlan {
	var plan UploadPlan
	for _, f := range files {
		if !IsArchive(f.Name) && f.Size > constants.MaxUploadSize {
			plan.Rejected = append(plan.Rejected, &api.ValidationError{
				Name:   f.Name,
				Reason: fmt.Sprintf("exceeds the maximum upload size of %s", FormatFileSize(constants.MaxUploadSize)),
			})
			continue
		}
		plan.Accepted = append(plan.Accepted, f)
	}
	return plan
}

// TagUploadStatus returns a copy of listing whose entries are marked failed
// when their name is in failed, success otherwise.
func TagUploadStatus(listing *models.DirectoryListing, failed []models.UploadFailure) *models.DirectoryListing {
	resp := models.UploadResponse{Failed: failed}
	names := resp.FailedNames()

	out := &models.DirectoryListing{
		CurrentPath: listing.CurrentPath,
		ParentPath:  listing.ParentPath,
		Entries:     make([]models.FileEntry, len(listing.Entries)),
	}
	for i, e := range listing.Entries {
		if _, bad := names[e.Name]; bad {
			e.UploadStatus = models.UploadFailed
		} else {
			e.UploadStatus = models.UploadSuccess
		}
		out.Entries[i] = e
	}
	return out
}

// uploadSummary is the single aggregate message for a partially failed upload.
func uploadSummary(sent int, failed []models.UploadFailure) string {
	parts := make([]string, 0, len(failed))
	for _, f := range failed {
		if f.Error != "" {
			parts = append(parts, f.Name+" ("+f.Error+")")
		} else {
			parts = append(parts, f.Name)
		}
	}
	return fmt.Sprintf("%d of %d files failed to upload: %s", len(failed), sent, strings.Join(parts, ", "))
}
