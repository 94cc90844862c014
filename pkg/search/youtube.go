package search

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

// ExtractVideoID pulls the 11-character video identifier out of any
// recognized YouTube URL form, or returns "".
func ExtractVideoID(raw string) string {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}

// Normalize maps any recognized YouTube URL form to the canonical
// watch?v= form. Unrecognized URLs pass through unchanged.
func Normalize(raw string) string {
	if id := ExtractVideoID(raw); id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}
	return raw
}

// IsYouTubeDomain reports whether the URL's host is a youtube.com host or
// the youtu.be short-link domain.
func IsYouTubeDomain(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return strings.Contains(host, "youtube.com") || host == "youtu.be"
}

// IsShorts reports whether the URL points at short-form content.
func IsShorts(raw string) bool {
	return strings.Contains(strings.ToLower(raw), "/shorts/")
}

// ParseDuration parses a provider display duration like "1:02:34",
// "12:34" or "45" into a time.Duration. The second return is false when
// the string is empty or unparseable.
func ParseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	seconds := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		seconds = seconds*60 + n
	}
	return time.Duration(seconds) * time.Second, true
}
