package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ResolveVideoReference extracts the 11-character video id from any accepted
// YouTube URL shape (watch, shorts, embed, youtu.be) and returns the
// canonical reference. The same input always resolves to the same reference;
// equivalent shapes of one video collapse to one canonical URL.
func ResolveVideoReference(raw string) (VideoReference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return VideoReference{}, fmt.Errorf("%w: empty input", ErrInvalidReference)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return VideoReference{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	host := strings.ToLower(parsed.Hostname())
	path := strings.Trim(parsed.Path, "/")

	var videoID string
	if strings.Contains(host, "youtube.com") {
		videoID = strings.TrimSpace(parsed.Query().Get("v"))
		if videoID == "" {
			videoID = pathSegmentAfter(path, "shorts/")
		}
		if videoID == "" {
			videoID = pathSegmentAfter(path, "embed/")
		}
	}
	if videoID == "" && strings.Contains(host, "youtu.be") && path != "" {
		videoID = strings.TrimSpace(strings.SplitN(path, "/", 2)[0])
	}

	if !videoIDPattern.MatchString(videoID) {
		return VideoReference{}, fmt.Errorf("%w: no valid video id in %q", ErrInvalidReference, raw)
	}

	return VideoReference{
		VideoID:      videoID,
		CanonicalURL: CanonicalVideoURL(videoID),
	}, nil
}

// CanonicalVideoURL rebuilds the normalized watch URL for a video id.
func CanonicalVideoURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func pathSegmentAfter(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	return strings.TrimSpace(strings.SplitN(rest, "/", 2)[0])
}
