// Package track defines the metadata returned for a song lookup and how its
// URLs are resolved against the API base.
package track

import "strings"

// ProxyMarker identifies server-relative URLs that route through the API's
// streaming proxy.
const ProxyMarker = "radio_proxy.php"

// Metadata is the lookup response for one song.
type Metadata struct {
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	AudioURL string `json:"audio_url"`
	LyricURL string `json:"lyric_url"`
}

// DisplayName returns "Artist - Title", the bare title, or fallback when the
// response carried neither.
func (m Metadata) DisplayName(fallback string) string {
	if m.Artist != "" && m.Title != "" {
		return m.Artist + " - " + m.Title
	}
	if m.Title != "" {
		return m.Title
	}
	return fallback
}

// IsAbsolute reports whether raw is an http(s) URL.
func IsAbsolute(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// IsProxied reports whether raw routes through the API's streaming proxy.
func IsProxied(raw string) bool {
	return strings.Contains(raw, ProxyMarker)
}

// ResolveURL turns a URL from the lookup response into a fetchable one.
// Absolute URLs pass through; proxy paths and any other relative path are
// appended to base. An empty raw stays empty.
func ResolveURL(base, raw string) string {
	if raw == "" || IsAbsolute(raw) {
		return raw
	}
	return join(base, raw)
}

func join(base, path string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/") {
		return base + path[1:]
	}
	if base != "" && !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/") {
		return base + "/" + path
	}
	return base + path
}
