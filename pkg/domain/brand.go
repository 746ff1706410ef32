package domain

import "time"

// Brand is a monitored brand. The pipeline mutates it at run boundaries only:
// the scrape lock at run start, the watermark and lock release at run end.
type Brand struct {
	ID            int64
	Name          string
	Active        bool
	LastScrapedAt *time.Time // scrape watermark; nil before the first run
	LookbackDays  int        // initial lookback, used only when the watermark is nil
	Languages     []string   // allowed title languages (ISO 639-1); empty = no filter
	ScrapeLocked  bool
}

// Topic groups the keywords searched for a brand. Read-only to the scraping core.
type Topic struct {
	ID            int64
	BrandID       int64
	Name          string
	Active        bool
	QueryTemplate string // optional; "{keyword}" is substituted when present
	Keywords      []Keyword
}

// Keyword is a single search keyword. The text may carry quoted phrases, e.g.
// `"Novo Nordisk" Wegovy`; every term of every phrase must match independently.
type Keyword struct {
	ID   int64
	Text string
}

// Platform is a resolved source platform (registrable domain) for a mention.
type Platform struct {
	ID   int64
	Name string
}

// SourceConfig describes how to search and extract one configured site.
// Looked up per domain with subdomain-to-parent fallback.
type SourceConfig struct {
	Domain            string `yaml:"domain"`
	TitleSelector     string `yaml:"title_selector"`
	ContentSelector   string `yaml:"content_selector"`
	DateSelector      string `yaml:"date_selector"`
	SearchURLTemplate string `yaml:"search_url_template"` // "{keyword}" placeholder
}

// RunStatus is the terminal status of one brand scrape run.
type RunStatus string

const (
	StatusSuccess    RunStatus = "success"
	StatusNotFound   RunStatus = "not_found"
	StatusLocked     RunStatus = "locked"
	StatusNoTopics   RunStatus = "no_topics"
	StatusNoKeywords RunStatus = "no_keywords"
	StatusNoMentions RunStatus = "no_mentions"
	StatusError      RunStatus = "error"
)

// RunResult is what a brand scrape run reports back to its caller. The core
// never lets an error escape its boundary; failures land here instead.
type RunResult struct {
	Status        RunStatus
	BrandID       int64
	BrandName     string
	Keywords      []string
	MentionsFound int
	MentionsSaved int
	Errors        []string
}
