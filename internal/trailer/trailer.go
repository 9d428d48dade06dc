// Package trailer turns the YouTube links people paste into embeddable player URLs.
package trailer

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for links that are not recognizable YouTube video URLs.
var ErrInvalidURL = errors.New("trailer: invalid YouTube URL")

const embedBase = "https://www.youtube.com/embed/"

var videoID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// pathPrefixes are the youtube.com paths that carry the video ID as the next segment.
var pathPrefixes = []string{"/embed/", "/shorts/", "/live/", "/v/"}

// EmbedURL normalizes a YouTube watch, youtu.be, embed, shorts or live link to
// https://www.youtube.com/embed/<id>.
func EmbedURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch {
	case host == "youtu.be":
		id = firstSegment(strings.TrimPrefix(u.Path, "/"))
	case host == "youtube.com" || host == "youtube-nocookie.com":
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range pathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				id = firstSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	}

	if !videoID.MatchString(id) {
		return "", ErrInvalidURL
	}
	return embedBase + id, nil
}

func firstSegment(p string) string {
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i]
	}
	return p
}
