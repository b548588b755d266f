// Package botfilter classifies user-agent strings as automated traffic.
//
// Signatures are loaded from an embedded, ordered YAML database and compiled
// case-insensitively with PCRE. Evaluation stops at the first match.
package botfilter

import (
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

//go:embed database/bots.yml
var databaseFiles embed.FS

// Category groups signatures by the kind of automation they detect.
type Category string

const (
	CategorySearchCrawler Category = "search_crawler"
	CategorySocialCrawler Category = "social_crawler"
	CategorySEOTool       Category = "seo_tool"
	CategoryHeadless      Category = "headless"
	CategoryCLIClient     Category = "cli_client"
	CategoryGeneric       Category = "generic"
)

// Signature is one entry of the bot database.
type Signature struct {
	Regex    string   `yaml:"regex"`
	Name     string   `yaml:"name"`
	Category Category `yaml:"category"`
}

type rule struct {
	signature Signature
	regex     *pcre.Regexp
}

// Filter matches user agents against an ordered list of compiled signatures.
// A Filter is safe for concurrent use.
type Filter struct {
	rules []rule
}

var (
	defaultFilter *Filter
	once          sync.Once
)

// Default returns the filter built from the embedded signature database.
func Default() *Filter {
	once.Do(func() {
		data, err := databaseFiles.ReadFile("database/bots.yml")
		if err != nil {
			slog.Error("botfilter: failed to read embedded database", slog.Any("error", err))
			defaultFilter = &Filter{}
			return
		}

		var signatures []Signature
		if err := yaml.Unmarshal(data, &signatures); err != nil {
			slog.Error("botfilter: failed to parse embedded database", slog.Any("error", err))
			defaultFilter = &Filter{}
			return
		}

		defaultFilter = New(signatures)
	})
	return defaultFilter
}

// New compiles the given signatures in order. Signatures whose pattern does
// not compile are skipped and logged.
func New(signatures []Signature) *Filter {
	f := &Filter{rules: make([]rule, 0, len(signatures))}
	for _, sig := range signatures {
		re, err := compile(sig.Regex)
		if err != nil {
			slog.Warn("botfilter: skipping invalid signature",
				slog.String("name", sig.Name),
				slog.String("regex", sig.Regex),
				slog.Any("error", err))
			continue
		}
		f.rules = append(f.rules, rule{signature: sig, regex: re})
	}
	return f
}

func compile(pattern string) (re *pcre.Regexp, err error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	defer func() {
		if r := recover(); r != nil {
			re, err = nil, fmt.Errorf("compile panic: %v", r)
		}
	}()
	return pcre.Compile("(?i)" + pattern)
}

// Classify returns the first signature matching the user agent.
// An empty user agent never matches.
func (f *Filter) Classify(userAgent string) (Signature, bool) {
	if f == nil || userAgent == "" {
		return Signature{}, false
	}
	for _, r := range f.rules {
		if r.regex.MatchString(userAgent) {
			return r.signature, true
		}
	}
	return Signature{}, false
}

// IsBot reports whether the user agent matches any signature.
func (f *Filter) IsBot(userAgent string) bool {
	_, ok := f.Classify(userAgent)
	return ok
}

// Len returns the number of compiled signatures.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rules)
}

// IsBot classifies the user agent with the default filter. A missing user
// agent is not evidence of automation and returns false.
func IsBot(userAgent string) bool {
	return Default().IsBot(userAgent)
}
