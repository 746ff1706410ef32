package discovery

import (
	"net/url"
	"regexp"
	"strings"

	"mentionscan/pkg/urlutil"
)

// Path extensions that are never articles.
var excludedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".webp": true, ".ico": true, ".css": true, ".js": true, ".json": true,
	".xml": true, ".pdf": true, ".zip": true, ".gz": true, ".mp3": true,
	".mp4": true, ".woff": true, ".woff2": true, ".ttf": true,
}

// Path segments that mark listing/utility pages, rejected unless a strong
// article signal (date path or article id) is also present.
var nonArticleSegments = map[string]bool{
	"tag": true, "tags": true, "topic": true, "topics": true,
	"category": true, "categories": true, "author": true, "authors": true,
	"search": true, "login": true, "signin": true, "signup": true,
	"register": true, "subscribe": true, "newsletter": true, "newsletters": true,
	"account": true, "profile": true, "about": true, "contact": true,
	"privacy": true, "terms": true, "cookies": true, "sitemap": true,
	"feed": true, "rss": true, "archive": true, "page": true,
}

var (
	datePathRe  = regexp.MustCompile(`/(19|20)\d{2}/\d{1,2}(/\d{1,2})?/`)
	articleIDRe = regexp.MustCompile(`(^|[/-])(\d{6,})($|[/.-])`)
)

// IsArticleCandidate applies the link acceptance rules: same registrable
// domain (or subdomain), non-empty non-asset path, and at least one
// article-shaped signal. Known non-article segments reject the link unless a
// strong signal (date path or article id) is present.
func IsArticleCandidate(u *url.URL, apex string) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !urlutil.SameSite(u.Host, apex) {
		return false
	}

	path := u.Path
	if strings.Trim(path, "/") == "" {
		return false
	}
	if i := strings.LastIndex(path, "."); i >= 0 {
		if excludedExtensions[strings.ToLower(path[i:])] {
			return false
		}
	}

	strong := hasDatePath(path) || hasArticleID(path)
	if containsNonArticleSegment(path) && !strong {
		return false
	}
	return strong || hasLongSlug(path)
}

func hasDatePath(path string) bool {
	return datePathRe.MatchString(path + "/")
}

func hasArticleID(path string) bool {
	return articleIDRe.MatchString(path)
}

// hasLongSlug accepts a hyphenated slug segment with at least 3 joined tokens
// and 20 characters, the usual shape of CMS article URLs.
func hasLongSlug(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if len(seg) >= 20 && strings.Count(seg, "-") >= 2 {
			return true
		}
	}
	return false
}

func containsNonArticleSegment(path string) bool {
	for _, seg := range strings.Split(strings.ToLower(path), "/") {
		if nonArticleSegments[seg] {
			return true
		}
	}
	return false
}
