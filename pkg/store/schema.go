package store

import (
	"context"
	"fmt"
	"strings"
)

const schema = `
CREATE TABLE IF NOT EXISTS brands (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	last_scraped_at TIMESTAMPTZ,
	lookback_days   INT NOT NULL DEFAULT 7,
	languages       TEXT[] NOT NULL DEFAULT '{}',
	scrape_locked   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS topics (
	id             BIGSERIAL PRIMARY KEY,
	brand_id       BIGINT NOT NULL REFERENCES brands(id),
	name           TEXT NOT NULL,
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	query_template TEXT
);

CREATE TABLE IF NOT EXISTS keywords (
	id       BIGSERIAL PRIMARY KEY,
	topic_id BIGINT NOT NULL REFERENCES topics(id),
	text     TEXT NOT NULL,
	active   BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS platforms (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS mentions (
	id              BIGSERIAL PRIMARY KEY,
	brand_id        BIGINT NOT NULL REFERENCES brands(id),
	topic_id        BIGINT NOT NULL REFERENCES topics(id),
	keyword_id      BIGINT,
	platform_id     BIGINT REFERENCES platforms(id),
	title           TEXT NOT NULL,
	link            TEXT NOT NULL,
	normalized_link TEXT NOT NULL,
	teaser          TEXT,
	provider        TEXT NOT NULL,
	published_at    TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (normalized_link, topic_id)
);

CREATE INDEX IF NOT EXISTS mentions_brand_created_idx
	ON mentions (brand_id, created_at DESC);

CREATE TABLE IF NOT EXISTS keyword_matches (
	id              BIGSERIAL PRIMARY KEY,
	brand_id        BIGINT NOT NULL REFERENCES brands(id),
	topic_id        BIGINT NOT NULL,
	keyword_id      BIGINT NOT NULL,
	normalized_link TEXT NOT NULL,
	UNIQUE (topic_id, keyword_id, normalized_link)
);

CREATE TABLE IF NOT EXISTS source_configs (
	id                  BIGSERIAL PRIMARY KEY,
	domain              TEXT NOT NULL UNIQUE,
	title_selector      TEXT,
	content_selector    TEXT,
	date_selector       TEXT,
	search_url_template TEXT
);
`

// EnsureSchema creates any missing tables and indexes. Safe to run on every
// start.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// parseTextArray decodes the Postgres text[] wire form ("{en,de}") for the
// simple unquoted values stored in brands.languages.
func parseTextArray(raw string) []string {
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
