package media

import (
	"path/filepath"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/fsutil"
)

// OutputPath builds the destination path for a finished video under root,
// mirroring the topic hierarchy the job was discovered from. Every path
// segment is sanitized for the filesystem.
func OutputPath(root string, job core.Job, info Info) string {
	name := fsutil.SanitizeFilename(info.Title)
	if name == "" {
		name = "video"
	}
	return filepath.Join(
		root,
		fsutil.SanitizeFilename(job.Subject),
		fsutil.SanitizeFilename(job.GroupKey),
		fsutil.SanitizeFilename(job.Topic),
		fsutil.SanitizeFilename(job.Subtopic),
		name+"_"+fsutil.SanitizeFilename(info.ID)+".mp4",
	)
}
