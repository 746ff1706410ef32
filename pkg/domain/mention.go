package domain

import "time"

// Mention is one ingested piece of content (news article, feed entry, search
// result) describing a brand or topic. Providers produce mentions; downstream
// stages only filter them out or fill in the attribution fields before the
// batch is persisted.
type Mention struct {
	Title          string
	Link           string
	NormalizedLink string
	PublishedAt    *time.Time // UTC; nil when the source gave no parsable date
	Platform       string
	Teaser         string
	Provider       string

	// Attribution, set by the pipeline before persistence.
	TopicID   int64
	KeywordID int64
}

// KeywordMatch records which keyword matched a persisted mention, one row per
// surviving match.
type KeywordMatch struct {
	BrandID        int64
	TopicID        int64
	KeywordID      int64
	NormalizedLink string
}
