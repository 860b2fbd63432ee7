package vault

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Link is one reference found in a note. Original is the literal citation
// as it appears in the text; Target is the link path without alias or
// heading.
type Link struct {
	Target   string
	Original string
}

var (
	wikiLinkPattern     = regexp.MustCompile(`!?\[\[([^\[\]|#^]+)(?:[#^][^\[\]|]*)?(?:\|[^\[\]]*)?\]\]`)
	markdownLinkPattern = regexp.MustCompile(`!?\[[^\[\]]*\]\(\s*(<[^>]*>|[^()\s]+)(?:\s+"[^"]*")?\s*\)`)
)

type linkMatch struct {
	offset int
	link   Link
}

// ParseLinks returns wiki links and Markdown links in the order they appear.
// External URLs are ignored.
func ParseLinks(text string) []Link {
	var matches []linkMatch

	for _, loc := range wikiLinkPattern.FindAllStringSubmatchIndex(text, -1) {
		target := strings.TrimSpace(text[loc[2]:loc[3]])
		if target == "" {
			continue
		}
		matches = append(matches, linkMatch{offset: loc[0], link: Link{Target: target, Original: text[loc[0]:loc[1]]}})
	}

	for _, loc := range markdownLinkPattern.FindAllStringSubmatchIndex(text, -1) {
		raw := strings.TrimSuffix(strings.TrimPrefix(text[loc[2]:loc[3]], "<"), ">")
		if raw == "" || strings.Contains(raw, "://") || strings.HasPrefix(raw, "mailto:") {
			continue
		}
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}
		target, err := url.PathUnescape(raw)
		if err != nil {
			target = raw
		}
		if target == "" {
			continue
		}
		matches = append(matches, linkMatch{offset: loc[0], link: Link{Target: target, Original: text[loc[0]:loc[1]]}})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].offset < matches[j].offset
	})

	links := make([]Link, 0, len(matches))
	for _, m := range matches {
		links = append(links, m.link)
	}
	return links
}
