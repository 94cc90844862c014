// Package media downloads and transcodes videos by shelling out to
// yt-dlp and ffmpeg.
package media

import (
	"context"
	"time"
)

// Info is the subset of video metadata the pipeline needs before
// committing to a download.
type Info struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Channel    string        `json:"channel"`
	Duration   time.Duration `json:"duration"`
	UploadDate string        `json:"upload_date"`
}

// Tool fetches video metadata and media and converts downloads to the
// pipeline's output format. Implementations classify failures so callers
// can distinguish retryable problems from content that should be dropped.
type Tool interface {
	// FetchInfo returns metadata for the video at url without downloading it.
	FetchInfo(ctx context.Context, url string) (Info, error)

	// FetchMedia downloads the video at url into dir and returns the path
	// of the downloaded file.
	FetchMedia(ctx context.Context, url, dir string) (string, error)

	// Transcode converts src into the normalized output format at dst.
	Transcode(ctx context.Context, src, dst string) error
}
