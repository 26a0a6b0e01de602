package resolver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/kkdai/youtube/v2"
)

const sourceYouTube = "youtube"

// YouTube resolves YouTube links without the yt-dlp binary. Used as a
// fallback when yt-dlp is missing or broken.
type YouTube struct {
	client *youtube.Client
}

func NewYouTube() *YouTube {
	return &YouTube{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
		},
	}
}

func (y *YouTube) Name() string { return sourceYouTube }

// Resolve only handles YouTube links; anything else is ErrUnsupported
func (y *YouTube) Resolve(ctx context.Context, query string) (queue.Item, error) {
	if !isYouTubeURL(query) {
		return queue.Item{}, ErrUnsupported
	}

	video, err := y.client.GetVideoContext(ctx, query)
	if err != nil {
		return queue.Item{}, &ResolveError{Query: query, Source: sourceYouTube, Cause: err}
	}

	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return queue.Item{}, &ResolveError{Query: query, Source: sourceYouTube, Cause: ErrNoResults}
	}
	formats.Sort()

	streamURL, err := y.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return queue.Item{}, &ResolveError{Query: query, Source: sourceYouTube, Cause: fmt.Errorf("stream url: %w", err)}
	}

	var thumb string
	if n := len(video.Thumbnails); n > 0 {
		thumb = video.Thumbnails[n-1].URL
	}

	return queue.Item{
		Title:      video.Title,
		Uploader:   video.Author,
		Duration:   int(video.Duration.Seconds()),
		Thumbnail:  thumb,
		Locator:    streamURL,
		WebpageURL: "https://www.youtube.com/watch?v=" + video.ID,
	}, nil
}
