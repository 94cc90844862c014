package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

const (
	ddgBase      = "https://duckduckgo.com"
	ddgUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var vqdPattern = regexp.MustCompile(`vqd=['"]?([\d-]+)`)

// DuckDuckGo implements Provider against the DuckDuckGo video search
// endpoint. A query first fetches the HTML results page to obtain the vqd
// token, then calls the JSON v.js endpoint with it.
type DuckDuckGo struct {
	client  *http.Client
	baseURL string
}

// NewDuckDuckGo returns a provider using the given HTTP client, or a
// default one with a 30s timeout when client is nil.
func NewDuckDuckGo(client *http.Client) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DuckDuckGo{client: client, baseURL: ddgBase}
}

type ddgVideo struct {
	Content  string `json:"content"`
	EmbedURL string `json:"embed_url"`
	Duration string `json:"duration"`
}

type ddgResponse struct {
	Results []ddgVideo `json:"results"`
}

// Search implements Provider.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int, region, safety string) ([]Result, error) {
	vqd, err := d.fetchVQD(ctx, query)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("l", region)
	params.Set("o", "json")
	params.Set("q", query)
	params.Set("vqd", vqd)
	params.Set("f", ",,,")
	if safety == "off" {
		params.Set("p", "-1")
	} else {
		params.Set("p", "1")
	}

	body, err := d.get(ctx, d.baseURL+"/v.js?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp ddgResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("duckduckgo: decode results: %w", err)
	}

	results := make([]Result, 0, len(resp.Results))
	for _, v := range resp.Results {
		u := v.Content
		if u == "" {
			u = v.EmbedURL
		}
		if u == "" {
			continue
		}
		results = append(results, Result{URL: u, Duration: v.Duration})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// fetchVQD loads the HTML results page and extracts the session token the
// JSON endpoint requires.
func (d *DuckDuckGo) fetchVQD(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("iax", "videos")
	params.Set("ia", "videos")

	body, err := d.get(ctx, d.baseURL+"/?"+params.Encode())
	if err != nil {
		return "", err
	}
	m := vqdPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("duckduckgo: no vqd token in response")
	}
	return string(m[1]), nil
}

func (d *DuckDuckGo) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: build request: %w", err)
	}
	req.Header.Set("User-Agent", ddgUserAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("duckduckgo: rate limited (HTTP 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: read body: %w", err)
	}
	return body, nil
}
