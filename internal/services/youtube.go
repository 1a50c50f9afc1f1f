package services

import (
	"fmt"
	"net/url"
	"strings"

	yt "github.com/kkdai/youtube/v2"
)

var youtubeHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// NormalizeYouTubeLink accepts a watch, short or embed URL (or a bare id)
// and returns the canonical watch URL.
func NormalizeYouTubeLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("youtube link is empty")
	}
	if u, err := url.Parse(link); err == nil && u.Host != "" && !isYouTubeHost(u.Hostname()) {
		return "", fmt.Errorf("invalid youtube link: host %s is not youtube", u.Hostname())
	}
	id, err := yt.ExtractVideoID(link)
	if err != nil {
		return "", fmt.Errorf("invalid youtube link: %w", err)
	}
	return "https://www.youtube.com/watch?v=" + id, nil
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range youtubeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
