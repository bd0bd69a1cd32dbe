// Package contact extracts email addresses and platform links from channel
// about pages.
package contact

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/channelscout/internal/domain"
)

// Email pattern variants, in order of confidence. Creators obfuscate
// addresses to dodge harvesters, so the spaced and worded forms are handled
// alongside the standard one.
var (
	emailStandard = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}`)
	emailSpaced   = regexp.MustCompile(`([A-Za-z0-9._%+-]+)\s*@\s*([A-Za-z0-9-]+(?:\s*\.\s*[A-Za-z0-9-]+)+)`)
	emailWorded   = regexp.MustCompile(`(?i)([a-z0-9._%+-]+)\s+at\s+([a-z0-9-]+(?:\s+dot\s+[a-z0-9-]+)+)`)
	wordedDot     = regexp.MustCompile(`(?i)\s+dot\s+`)
)

// placeholderDomains are example addresses people paste as templates; a
// match on any of these is discarded.
var placeholderDomains = map[string]struct{}{
	"example.com":      {},
	"example.org":      {},
	"example.net":      {},
	"domain.com":       {},
	"yourdomain.com":   {},
	"email.com":        {},
	"yourbusiness.com": {},
	"business.com":     {},
}

// platformPatterns maps a platform key to the host substrings that identify
// it. Order inside a slice does not matter; matching is per-link.
var platformPatterns = []struct {
	Platform string
	Hosts    []string
}{
	{Platform: "instagram", Hosts: []string{"instagram.com"}},
	{Platform: "twitter", Hosts: []string{"twitter.com", "x.com"}},
	{Platform: "facebook", Hosts: []string{"facebook.com", "fb.com"}},
	{Platform: "tiktok", Hosts: []string{"tiktok.com"}},
	{Platform: "twitch", Hosts: []string{"twitch.tv"}},
	{Platform: "discord", Hosts: []string{"discord.gg", "discord.com"}},
	{Platform: "patreon", Hosts: []string{"patreon.com"}},
	{Platform: "linktree", Hosts: []string{"linktr.ee"}},
}

// Resolver extracts contact identifiers from free text and raw markup.
type Resolver struct {
	sourceHosts []string
}

// NewResolver creates a resolver. sourceHosts are host suffixes of the
// crawled source site itself; links back to it never count as a website.
func NewResolver(sourceHosts ...string) *Resolver {
	return &Resolver{sourceHosts: sourceHosts}
}

// Resolve extracts emails from the visible text and classified links from
// the markup. It is deterministic: the same input always yields the same
// contacts, because both scans walk their input in document order.
func (r *Resolver) Resolve(text, html string) (*domain.Contacts, error) {
	contacts := &domain.Contacts{
		Emails: ExtractEmails(text),
	}

	links, website, err := r.classifyLinks(html)
	if err != nil {
		return nil, err
	}
	contacts.Links = links
	contacts.Website = website

	return contacts, nil
}

// ExtractEmails applies the pattern variants to text and returns the
// deduplicated candidates in order of first appearance, placeholders
// filtered out.
func ExtractEmails(text string) []string {
	var candidates []string

	candidates = append(candidates, emailStandard.FindAllString(text, -1)...)

	for _, match := range emailSpaced.FindAllStringSubmatch(text, -1) {
		domainPart := strings.NewReplacer(" ", "", "\t", "").Replace(match[2])
		candidates = append(candidates, match[1]+"@"+domainPart)
	}

	for _, match := range emailWorded.FindAllStringSubmatch(text, -1) {
		domainPart := wordedDot.ReplaceAllString(match[2], ".")
		candidates = append(candidates, match[1]+"@"+domainPart)
	}

	seen := make(map[string]struct{}, len(candidates))
	emails := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		normalized := normalizeEmail(candidate)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		emails = append(emails, normalized)
	}
	return emails
}

// normalizeEmail lowercases the domain part and rejects placeholders.
func normalizeEmail(raw string) string {
	at := strings.LastIndexByte(raw, '@')
	if at <= 0 || at == len(raw)-1 {
		return ""
	}

	local := raw[:at]
	domainPart := strings.ToLower(raw[at+1:])
	if !strings.Contains(domainPart, ".") {
		return ""
	}
	if _, placeholder := placeholderDomains[domainPart]; placeholder {
		return ""
	}
	return local + "@" + domainPart
}

// classifyLinks scans outbound links in document order. The first link
// matching a platform wins for that platform; the first link that is
// neither a platform nor the source site becomes the website.
func (r *Resolver) classifyLinks(html string) (map[string]string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("parse html: %w", err)
	}

	links := make(map[string]string)
	website := ""

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)

		host := linkHost(href)
		if host == "" {
			return
		}

		if platform := matchPlatform(host); platform != "" {
			if _, taken := links[platform]; !taken {
				links[platform] = href
			}
			return
		}

		if website == "" && !r.isSourceHost(host) {
			website = href
		}
	})

	if len(links) == 0 {
		links = nil
	}
	return links, website, nil
}

// linkHost extracts the lowercased host of an absolute http(s) link.
// Relative links are navigation inside the source site, not contacts.
func linkHost(href string) string {
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
}

// matchPlatform returns the platform key for a host, or "".
func matchPlatform(host string) string {
	for _, entry := range platformPatterns {
		for _, candidate := range entry.Hosts {
			if host == candidate || strings.HasSuffix(host, "."+candidate) {
				return entry.Platform
			}
		}
	}
	return ""
}

// isSourceHost reports whether host belongs to the crawled source site.
func (r *Resolver) isSourceHost(host string) bool {
	for _, source := range r.sourceHosts {
		if host == source || strings.HasSuffix(host, "."+source) {
			return true
		}
	}
	return false
}
