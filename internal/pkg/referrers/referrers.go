package referrers

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DirectSource is reported for absent or unparseable referrers.
const DirectSource = "Direct"

// Source is the classified origin of a visit.
type Source struct {
	Name string
	// Domain is nil for direct traffic.
	Domain *string
}

// knownSource maps hostnames to a friendly source name. Domain is the
// canonical domain reported for every host that matches it.
type knownSource struct {
	Name    string
	Domain  string
	Matches func(host string) bool
}

func domains(names ...string) func(string) bool {
	return func(host string) bool {
		for _, d := range names {
			if host == d || strings.HasSuffix(host, "."+d) {
				return true
			}
		}
		return false
	}
}

// isGoogle matches google.<any tld> and its subdomains.
func isGoogle(host string) bool {
	return strings.HasPrefix(host, "google.") || strings.Contains(host, ".google.")
}

// knownSources is evaluated in order, first match wins.
var knownSources = []knownSource{
	// Search engines
	{Name: "Google", Domain: "google.com", Matches: isGoogle},
	{Name: "Bing", Domain: "bing.com", Matches: domains("bing.com")},
	{Name: "DuckDuckGo", Domain: "duckduckgo.com", Matches: domains("duckduckgo.com")},
	{Name: "Yahoo", Domain: "yahoo.com", Matches: domains("search.yahoo.com", "yahoo.com")},
	{Name: "Baidu", Domain: "baidu.com", Matches: domains("baidu.com")},
	{Name: "Yandex", Domain: "yandex.ru", Matches: domains("yandex.ru", "yandex.com")},
	{Name: "Ecosia", Domain: "ecosia.org", Matches: domains("ecosia.org")},
	{Name: "Brave Search", Domain: "search.brave.com", Matches: domains("search.brave.com")},
	{Name: "Perplexity", Domain: "perplexity.ai", Matches: domains("perplexity.ai")},
	{Name: "ChatGPT", Domain: "chatgpt.com", Matches: domains("chatgpt.com", "chat.openai.com")},

	// Social media
	{Name: "Twitter", Domain: "twitter.com", Matches: domains("twitter.com", "x.com", "t.co")},
	{Name: "Facebook", Domain: "facebook.com", Matches: domains("facebook.com", "fb.com", "fb.me")},
	{Name: "Instagram", Domain: "instagram.com", Matches: domains("instagram.com")},
	{Name: "LinkedIn", Domain: "linkedin.com", Matches: domains("linkedin.com", "lnkd.in")},
	{Name: "Reddit", Domain: "reddit.com", Matches: domains("reddit.com", "redd.it")},
	{Name: "YouTube", Domain: "youtube.com", Matches: domains("youtube.com", "youtu.be")},
	{Name: "TikTok", Domain: "tiktok.com", Matches: domains("tiktok.com")},
	{Name: "Pinterest", Domain: "pinterest.com", Matches: domains("pinterest.com", "pin.it")},
	{Name: "Threads", Domain: "threads.net", Matches: domains("threads.net")},
	{Name: "Bluesky", Domain: "bsky.app", Matches: domains("bsky.app")},
	{Name: "Mastodon", Domain: "mastodon.social", Matches: domains("mastodon.social")},
	{Name: "Discord", Domain: "discord.com", Matches: domains("discord.com", "discordapp.com", "discord.gg")},
	{Name: "Telegram", Domain: "t.me", Matches: domains("t.me", "telegram.org")},
	{Name: "WhatsApp", Domain: "whatsapp.com", Matches: domains("whatsapp.com", "wa.me")},

	// Developer and maker communities
	{Name: "Hacker News", Domain: "news.ycombinator.com", Matches: domains("news.ycombinator.com", "hn.algolia.com")},
	{Name: "Product Hunt", Domain: "producthunt.com", Matches: domains("producthunt.com")},
	{Name: "Indie Hackers", Domain: "indiehackers.com", Matches: domains("indiehackers.com")},
	{Name: "DEV Community", Domain: "dev.to", Matches: domains("dev.to")},
	{Name: "GitHub", Domain: "github.com", Matches: domains("github.com")},
	{Name: "Stack Overflow", Domain: "stackoverflow.com", Matches: domains("stackoverflow.com")},
	{Name: "Medium", Domain: "medium.com", Matches: domains("medium.com")},
	{Name: "Substack", Domain: "substack.com", Matches: domains("substack.com")},
	{Name: "Hashnode", Domain: "hashnode.com", Matches: domains("hashnode.com", "hashnode.dev")},
	{Name: "Lobsters", Domain: "lobste.rs", Matches: domains("lobste.rs")},
}

var titleCaser = cases.Title(language.Und)

// Direct returns the source used when no referrer is known.
func Direct() Source {
	return Source{Name: DirectSource}
}

// Hostname extracts the normalized host from a referrer URL: lowercase,
// port stripped, "www." removed. It returns "" when no host can be parsed.
func Hostname(referrerURL string) string {
	raw := strings.TrimSpace(referrerURL)
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "www."), ".")
	if host == "" || strings.ContainsAny(host, " /\\") {
		return ""
	}
	return host
}

// Classify maps a referrer URL to its source. Known hosts resolve through
// the ordered source table; unknown hosts use their capitalized first label.
func Classify(referrerURL string) Source {
	host := Hostname(referrerURL)
	if host == "" {
		return Direct()
	}

	for _, known := range knownSources {
		if known.Matches(host) {
			domain := known.Domain
			return Source{Name: known.Name, Domain: &domain}
		}
	}

	label := host
	if idx := strings.Index(host, "."); idx > 0 {
		label = host[:idx]
	}
	domain := host
	return Source{Name: titleCaser.String(label), Domain: &domain}
}

// FriendlyName returns the display name for a bare hostname.
func FriendlyName(hostname string) string {
	return Classify(hostname).Name
}
