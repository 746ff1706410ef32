// Package langfilter drops mentions whose titles are written in a language
// the brand does not track.
package langfilter

import (
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"

	"mentionscan/pkg/domain"
	"mentionscan/pkg/metrics"
)

// Titles shorter than this carry too little signal for reliable detection.
const minTitleChars = 15

// Detections below this confidence are treated as unknown and kept.
const minConfidence = 0.6

// Filter keeps mentions whose title language is in allowed (ISO 639-1
// codes). An empty allowed list disables filtering. Detection failures fail
// open: a mention is only dropped when the detector is confident about a
// language outside the list.
func Filter(mentions []domain.Mention, allowed []string) []domain.Mention {
	if len(allowed) == 0 {
		return mentions
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, code := range allowed {
		allowedSet[strings.ToLower(code)] = struct{}{}
	}

	out := mentions[:0:0]
	for _, m := range mentions {
		if keep(m.Title, allowedSet) {
			out = append(out, m)
			continue
		}
		slog.Debug("language filtered", "title", m.Title, "link", m.NormalizedLink)
		metrics.FilteredMentions.WithLabelValues("language").Inc()
	}
	return out
}

func keep(title string, allowed map[string]struct{}) bool {
	title = strings.TrimSpace(title)
	if len(title) < minTitleChars {
		return true
	}
	info := whatlanggo.Detect(title)
	if !info.IsReliable() || info.Confidence < minConfidence {
		return true
	}
	code := whatlanggo.LangToStringShort(info.Lang)
	_, ok := allowed[code]
	return ok
}
