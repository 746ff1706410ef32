// Package dedup removes repeated mentions in three stages: exact URL
// matches within a run, near-duplicate titles within a run, and matches
// against recently stored mentions.
package dedup

import (
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"mentionscan/pkg/domain"
	"mentionscan/pkg/metrics"
	"mentionscan/pkg/urlutil"
)

// Deduper holds the near-duplicate tuning knobs.
type Deduper struct {
	threshold       int // token-set ratio 0-100
	dayWindow       int
	signatureTokens int
}

// New creates a deduper. Zero options fall back to the defaults used in
// production.
func New(threshold, dayWindow, signatureTokens int) *Deduper {
	if threshold <= 0 {
		threshold = 90
	}
	if dayWindow <= 0 {
		dayWindow = 2
	}
	if signatureTokens <= 0 {
		signatureTokens = 4
	}
	return &Deduper{threshold: threshold, dayWindow: dayWindow, signatureTokens: signatureTokens}
}

// ExactByURL keeps the first mention seen per normalized link. Order is
// preserved so provider priority decides which copy survives.
func ExactByURL(mentions []domain.Mention) []domain.Mention {
	seen := make(map[string]struct{}, len(mentions))
	out := mentions[:0:0]
	for _, m := range mentions {
		key := m.NormalizedLink
		if key == "" {
			key = m.Link
		}
		if _, dup := seen[key]; dup {
			metrics.DuplicatesRemoved.WithLabelValues("exact").Inc()
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

// NearDuplicates drops later mentions whose titles are near-identical to an
// earlier one. Candidates are pre-grouped by a blocking key (registrable
// domain plus the first few title tokens) so the fuzzy comparison only runs
// within small groups. When both mentions carry publish dates they must also
// fall within the day window to count as duplicates; a missing date on either
// side skips the window check.
func (d *Deduper) NearDuplicates(mentions []domain.Mention) []domain.Mention {
	groups := make(map[string][]titleEntry)
	out := mentions[:0:0]

	for _, m := range mentions {
		key := d.blockingKey(m)
		dup := false
		for _, k := range groups[key] {
			if !d.withinWindow(k.date, m.PublishedAt) {
				continue
			}
			if fuzzy.TokenSetRatio(k.title, m.Title) >= d.threshold {
				dup = true
				break
			}
		}
		if dup {
			metrics.DuplicatesRemoved.WithLabelValues("near").Inc()
			continue
		}
		groups[key] = append(groups[key], titleEntry{title: m.Title, date: m.PublishedAt})
		out = append(out, m)
	}
	return out
}

// AgainstHistory drops mentions already stored: an exact normalized-link
// match, or a near-duplicate title from the same registrable domain.
func (d *Deduper) AgainstHistory(mentions []domain.Mention, history []domain.Mention) []domain.Mention {
	links := make(map[string]struct{}, len(history))
	titles := make(map[string][]titleEntry, len(history))
	for _, h := range history {
		key := h.NormalizedLink
		if key == "" {
			key = h.Link
		}
		links[key] = struct{}{}
		bk := d.blockingKey(h)
		titles[bk] = append(titles[bk], titleEntry{title: h.Title, date: h.PublishedAt})
	}

	out := mentions[:0:0]
	for _, m := range mentions {
		key := m.NormalizedLink
		if key == "" {
			key = m.Link
		}
		if _, dup := links[key]; dup {
			metrics.DuplicatesRemoved.WithLabelValues("history").Inc()
			continue
		}
		dup := false
		for _, k := range titles[d.blockingKey(m)] {
			if !d.withinWindow(k.date, m.PublishedAt) {
				continue
			}
			if fuzzy.TokenSetRatio(k.title, m.Title) >= d.threshold {
				dup = true
				break
			}
		}
		if dup {
			metrics.DuplicatesRemoved.WithLabelValues("history").Inc()
			continue
		}
		out = append(out, m)
	}
	return out
}

type titleEntry struct {
	title string
	date  *time.Time
}

func (d *Deduper) blockingKey(m domain.Mention) string {
	link := m.NormalizedLink
	if link == "" {
		link = m.Link
	}
	domainPart := urlutil.RegistrableDomain(link)

	tokens := strings.Fields(strings.ToLower(m.Title))
	n := d.signatureTokens
	if n > len(tokens) {
		n = len(tokens)
	}
	return domainPart + "|" + strings.Join(tokens[:n], " ")
}

func (d *Deduper) withinWindow(a, b *time.Time) bool {
	if a == nil || b == nil {
		return true
	}
	diff := a.Sub(*b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(d.dayWindow)*24*time.Hour
}
