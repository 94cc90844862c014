package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/eduvid/harvester/pkg/core"
)

// YTDLP runs the yt-dlp and ffmpeg binaries. It is safe for concurrent
// use; each call spawns its own process.
type YTDLP struct {
	// YTDLPPath and FFmpegPath override the binary names looked up on PATH.
	YTDLPPath  string
	FFmpegPath string

	// Width and Height are the normalized output dimensions.
	Width  int
	Height int

	// Format is the yt-dlp format selector.
	Format string
}

// NewYTDLP returns a tool with the default binaries, format and 256x256
// output dimensions.
func NewYTDLP() *YTDLP {
	return &YTDLP{
		YTDLPPath:  "yt-dlp",
		FFmpegPath: "ffmpeg",
		Width:      256,
		Height:     256,
		Format:     "best[ext=mp4]/best",
	}
}

type ytdlpInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	UploadDate string  `json:"upload_date"`
}

// FetchInfo implements Tool using `yt-dlp -J`.
func (y *YTDLP) FetchInfo(ctx context.Context, url string) (Info, error) {
	out, err := y.runYTDLP(ctx, "-J", "--no-playlist", url)
	if err != nil {
		return Info{}, err
	}

	var raw ytdlpInfo
	if err := json.Unmarshal(out, &raw); err != nil {
		return Info{}, fmt.Errorf("media: decode video info: %w", err)
	}
	channel := raw.Channel
	if channel == "" {
		channel = raw.Uploader
	}
	return Info{
		ID:         raw.ID,
		Title:      raw.Title,
		Channel:    channel,
		Duration:   time.Duration(raw.Duration * float64(time.Second)),
		UploadDate: raw.UploadDate,
	}, nil
}

// FetchMedia implements Tool. The downloaded file lands in dir named by
// the video ID.
func (y *YTDLP) FetchMedia(ctx context.Context, url, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("media: create download dir: %w", err)
	}
	template := filepath.Join(dir, "%(id)s.%(ext)s")
	out, err := y.runYTDLP(ctx,
		"-f", y.Format,
		"--no-playlist",
		"--no-progress",
		"-o", template,
		"--print", "after_move:filepath",
		url,
	)
	if err != nil {
		return "", err
	}
	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", fmt.Errorf("media: yt-dlp reported no output file")
	}
	return path, nil
}

// Transcode implements Tool: scale to fit the target box preserving aspect
// ratio, pad to exact dimensions, H.264 video and AAC audio with the moov
// atom up front.
func (y *YTDLP) Transcode(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("media: create output dir: %w", err)
	}
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		y.Width, y.Height, y.Width, y.Height,
	)
	cmd := exec.CommandContext(ctx, y.ffmpeg(),
		"-y",
		"-i", src,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("media: ffmpeg: %w: %s", err, tail(stderr.String()))
	}
	return nil
}

func (y *YTDLP) runYTDLP(ctx context.Context, args ...string) ([]byte, error) {
	bin := y.YTDLPPath
	if bin == "" {
		bin = "yt-dlp"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classify(fmt.Errorf("media: yt-dlp: %w: %s", err, tail(stderr.String())), stderr.String())
	}
	return stdout.Bytes(), nil
}

func (y *YTDLP) ffmpeg() string {
	if y.FFmpegPath != "" {
		return y.FFmpegPath
	}
	return "ffmpeg"
}

// classify inspects yt-dlp output and wraps failures that will never
// succeed on retry so callers drop the job instead of requeueing it.
func classify(err error, output string) error {
	lower := strings.ToLower(output)
	for _, marker := range []string{
		"video unavailable",
		"private video",
		"this video is not available",
		"removed by the uploader",
		"account associated with this video has been terminated",
		"age-restricted",
		"sign in to confirm",
	} {
		if strings.Contains(lower, marker) {
			return core.Reject(err)
		}
	}
	return err
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
