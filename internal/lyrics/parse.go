// Package lyrics fetches LRC lyric files, parses them into timed lines and
// keeps the displayed line in step with playback.
package lyrics

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Line is one timed lyric. Text may be empty (an instrumental gap).
type Line struct {
	TimestampMs int64
	Text        string
}

// Parse reads LRC text. Lines of the form "[mm:ss.xx]text" become Lines;
// metadata tags such as "[ar:Someone]" and anything unparseable are dropped.
// The result is sorted by timestamp, keeping file order for equal times.
func Parse(content string) []Line {
	var lines []Line

	for _, raw := range strings.Split(content, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if raw == "" || raw[0] != '[' {
			continue
		}

		end := strings.IndexByte(raw, ']')
		if end < 0 {
			continue
		}
		tag, text := raw[1:end], raw[end+1:]

		ms, ok := parseTimestamp(tag)
		if !ok {
			log.Debug().Str("tag", tag).Msg("Skipping LRC metadata tag")
			continue
		}
		lines = append(lines, Line{TimestampMs: ms, Text: text})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].TimestampMs < lines[j].TimestampMs
	})

	log.Debug().Int("lines", len(lines)).Msg("Parsed lyrics")
	return lines
}

func parseTimestamp(tag string) (int64, bool) {
	minPart, secPart, found := strings.Cut(tag, ":")
	if !found || minPart == "" {
		return 0, false
	}
	for _, c := range minPart {
		if c < '0' || c > '9' {
			return 0, false
		}
	}

	minutes, err := strconv.ParseInt(minPart, 10, 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(secPart, 64)
	if err != nil || seconds < 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		log.Debug().Str("tag", tag).Msg("Unparseable LRC timestamp")
		return 0, false
	}

	return minutes*60_000 + int64(math.Round(seconds*1000)), true
}
