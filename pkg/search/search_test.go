package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider returns canned results per query and records calls.
type stubProvider struct {
	results map[string][]Result
	err     error
	queries []string
}

func (s *stubProvider) Search(ctx context.Context, query string, maxResults int, region, safety string) ([]Result, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

func newTestFinder(p Provider) *Finder {
	return NewFinder(p, DefaultFinderConfig(), nil)
}

func TestFinder_Find(t *testing.T) {
	p := &stubProvider{results: map[string][]Result{
		"physics gravity video": {
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
			{URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb", Duration: "3:21"},
		},
	}}
	f := newTestFinder(p)

	urls, err := f.Find(context.Background(), "physics", "gravity", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.youtube.com/watch?v=aaaaaaaaaaa",
		"https://www.youtube.com/watch?v=bbbbbbbbbbb",
	}, urls)
}

func TestFinder_Find_FallsThroughQueryVariants(t *testing.T) {
	p := &stubProvider{results: map[string][]Result{
		"gravity educational video": {
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
		},
	}}
	f := newTestFinder(p)

	urls, err := f.Find(context.Background(), "physics", "gravity", 1)
	require.NoError(t, err)

	require.Len(t, urls, 1)
	assert.Equal(t, []string{"physics gravity video", "gravity educational video"}, p.queries)
}

func TestFinder_Find_FiltersNonYouTube(t *testing.T) {
	p := &stubProvider{results: map[string][]Result{
		"physics gravity video": {
			{URL: "https://vimeo.com/12345", Duration: "5:00"},
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
		},
	}}
	f := newTestFinder(p)

	urls, err := f.Find(context.Background(), "physics", "gravity", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"}, urls)
}

func TestFinder_Find_FiltersShortsAndLongVideos(t *testing.T) {
	p := &stubProvider{results: map[string][]Result{
		"physics gravity video": {
			{URL: "https://www.youtube.com/shorts/ccccccccccc", Duration: "0:45"},
			{URL: "https://www.youtube.com/watch?v=ddddddddddd", Duration: "1:30:00"},
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
		},
	}}
	f := newTestFinder(p)

	urls, err := f.Find(context.Background(), "physics", "gravity", 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"}, urls)
}

func TestFinder_Find_SkipsSeenURLs(t *testing.T) {
	p := &stubProvider{results: map[string][]Result{
		"physics gravity video": {
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
			{URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb", Duration: "5:00"},
		},
	}}
	f := newTestFinder(p)
	f.MarkSeen("https://www.youtube.com/watch?v=aaaaaaaaaaa")

	urls, err := f.Find(context.Background(), "physics", "gravity", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www.youtube.com/watch?v=bbbbbbbbbbb"}, urls)
}

func TestFinder_Find_NormalizesShortLinks(t *testing.T) {
	p := &stubProvider{results: map[string][]Result{
		"physics gravity video": {
			{URL: "https://youtube.com/embed/aaaaaaaaaaa", Duration: "5:00"},
		},
	}}
	f := newTestFinder(p)

	urls, err := f.Find(context.Background(), "physics", "gravity", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"}, urls)
}

func TestFinder_Find_ProviderError(t *testing.T) {
	p := &stubProvider{err: errors.New("rate limited")}
	f := newTestFinder(p)

	_, err := f.Find(context.Background(), "physics", "gravity", 2)
	assert.Error(t, err)
}

func TestFinder_AcceptedURLsJoinWorkingSet(t *testing.T) {
	p := &stubProvider{results: map[string][]Result{
		"physics gravity video": {
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
		},
	}}
	f := newTestFinder(p)

	_, err := f.Find(context.Background(), "physics", "gravity", 1)
	require.NoError(t, err)

	assert.True(t, f.Seen("https://www.youtube.com/watch?v=aaaaaaaaaaa"))

	// The same result is not returned twice.
	urls, err := f.Find(context.Background(), "physics", "gravity", 1)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":   "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ":  "dQw4w9WgXcQ",
		"https://vimeo.com/12345":                     "",
		"not a url":                                   "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, ExtractVideoID(raw), raw)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t,
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Normalize("https://youtu.be/dQw4w9WgXcQ"))
	assert.Equal(t,
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Normalize("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=30s"))
	assert.Equal(t, "https://example.com/x", Normalize("https://example.com/x"))
}

func TestIsYouTubeDomain(t *testing.T) {
	assert.True(t, IsYouTubeDomain("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, IsYouTubeDomain("https://m.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, IsYouTubeDomain("https://youtu.be/dQw4w9WgXcQ"))
	assert.False(t, IsYouTubeDomain("https://vimeo.com/12345"))
}

func TestIsShorts(t *testing.T) {
	assert.True(t, IsShorts("https://www.youtube.com/shorts/dQw4w9WgXcQ"))
	assert.False(t, IsShorts("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
}

func TestParseDuration(t *testing.T) {
	d, ok := ParseDuration("1:02:34")
	require.True(t, ok)
	assert.Equal(t, time.Hour+2*time.Minute+34*time.Second, d)

	d, ok = ParseDuration("12:34")
	require.True(t, ok)
	assert.Equal(t, 12*time.Minute+34*time.Second, d)

	d, ok = ParseDuration("45")
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, d)

	_, ok = ParseDuration("")
	assert.False(t, ok)
	_, ok = ParseDuration("1:2:3:4")
	assert.False(t, ok)
	_, ok = ParseDuration("abc")
	assert.False(t, ok)
}
