package queue

import "fmt"

// Item is a resolved track ready to be streamed.
type Item struct {
	Title      string
	Uploader   string
	Duration   int // seconds, 0 = unknown
	Thumbnail  string
	Locator    string // direct media URL handed to the voice session
	WebpageURL string
}

// FormatDuration returns the duration as M:SS, or "Unknown" when not known
func (it Item) FormatDuration() string {
	if it.Duration <= 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%d:%02d", it.Duration/60, it.Duration%60)
}

// Link returns the page URL if present, otherwise the stream locator
func (it Item) Link() string {
	if it.WebpageURL != "" {
		return it.WebpageURL
	}
	return it.Locator
}
