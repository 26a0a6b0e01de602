package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/lrstanley/go-ytdlp"
)

const sourceYTDLP = "yt-dlp"

// YTDLP resolves links and search terms through the yt-dlp binary.
type YTDLP struct {
	proxy string
}

func NewYTDLP(proxy string) *YTDLP {
	return &YTDLP{proxy: proxy}
}

func (y *YTDLP) Name() string { return sourceYTDLP }

// Resolve runs yt-dlp in simulate mode and reads the single JSON document it prints
func (y *YTDLP) Resolve(ctx context.Context, query string) (queue.Item, error) {
	target := query
	if !isURL(query) {
		target = "ytsearch1:" + query
	}

	cmd := ytdlp.New().
		DumpSingleJSON().
		Format("bestaudio/best").
		NoPlaylist().
		NoCheckCertificates().
		NoWarnings().
		IgnoreConfig()
	if y.proxy != "" {
		cmd.Proxy(y.proxy)
	}

	res, err := cmd.Run(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return queue.Item{}, ctx.Err()
		}
		cause := err
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			cause = fmt.Errorf("%w: %s", err, lastLine(res.Stderr))
		}
		return queue.Item{}, &ResolveError{Query: query, Source: sourceYTDLP, Cause: cause}
	}

	item, err := parseInfo([]byte(res.Stdout))
	if err != nil {
		return queue.Item{}, &ResolveError{Query: query, Source: sourceYTDLP, Cause: err}
	}
	return item, nil
}

type ytdlpInfo struct {
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	Duration   float64     `json:"duration"`
	Thumbnail  string      `json:"thumbnail"`
	URL        string      `json:"url"`
	WebpageURL string      `json:"webpage_url"`
	Entries    []ytdlpInfo `json:"entries"`
	Formats    []struct {
		URL string `json:"url"`
	} `json:"formats"`
}

// parseInfo maps yt-dlp JSON onto an Item. Search results and playlists
// arrive as an entries list; the first entry wins.
func parseInfo(raw []byte) (queue.Item, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return queue.Item{}, ErrNoResults
	}

	var info ytdlpInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return queue.Item{}, fmt.Errorf("invalid yt-dlp output: %w", err)
	}

	if info.Entries != nil {
		if len(info.Entries) == 0 {
			return queue.Item{}, ErrNoEntries
		}
		info = info.Entries[0]
	}

	locator := strings.TrimSpace(info.URL)
	if locator == "" && len(info.Formats) > 0 {
		locator = strings.TrimSpace(info.Formats[len(info.Formats)-1].URL)
	}
	if locator == "" {
		return queue.Item{}, ErrNoResults
	}

	item := queue.Item{
		Title:      info.Title,
		Uploader:   info.Uploader,
		Duration:   int(info.Duration),
		Thumbnail:  info.Thumbnail,
		Locator:    locator,
		WebpageURL: info.WebpageURL,
	}
	if item.Title == "" {
		item.Title = "Unknown"
	}
	if item.Uploader == "" {
		item.Uploader = "Unknown"
	}
	return item, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
