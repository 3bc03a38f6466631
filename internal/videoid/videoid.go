// Package videoid extracts canonical YouTube video identifiers from URLs.
package videoid

import (
	"net/url"
	"strings"
)

// Extract returns the video identifier embedded in a YouTube watch or share
// URL. It recognizes youtube.com/watch?v=<id> and youtu.be/<id> shapes and
// reports ok=false for anything else, including unparseable input. It never
// returns an error: a URL that matches neither pattern is simply not a video.
func Extract(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := u.Hostname()
	switch {
	case strings.Contains(host, "youtube.com"):
		// youtube.com is checked before youtu.be so that a hostname
		// containing both resolves to the query-parameter form.
		if id := u.Query().Get("v"); id != "" {
			return id, true
		}
		return "", false
	case strings.Contains(host, "youtu.be"):
		if id := strings.TrimPrefix(u.Path, "/"); id != "" {
			return id, true
		}
		return "", false
	default:
		return "", false
	}
}
