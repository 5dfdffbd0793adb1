// Package videolink extracts provider embed identifiers from pasted video URLs.
package videolink

import (
	"fmt"
	"regexp"
	"strings"
)

// EmbedBase is the player address the embed id is substituted into.
const EmbedBase = "https://uqload.bz/embed-%s.html"

// Rule recognises one URL shape. The pattern's first capture group is the embed id.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Parser applies its rules in order; the first rule that matches wins.
type Parser struct {
	rules []Rule
}

// NewParser builds a parser over rules. Rules without a capture group are ignored.
func NewParser(rules ...Rule) *Parser {
	kept := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Pattern == nil || r.Pattern.NumSubexp() < 1 {
			continue
		}
		kept = append(kept, r)
	}
	return &Parser{rules: kept}
}

// Default recognises uqload share and embed links on any uqload TLD.
var Default = NewParser(
	Rule{Name: "uqload-embed", Pattern: regexp.MustCompile(`(?i)uqload\.[a-z]+/embed-([a-z0-9]+)\.html`)},
	Rule{Name: "uqload", Pattern: regexp.MustCompile(`(?i)uqload\.[a-z]+/([a-z0-9]+)\.html`)},
)

// Parse returns the embed id carried by raw, or ok=false when no rule matches.
func (p *Parser) Parse(raw string) (id string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || p == nil {
		return "", false
	}
	for _, r := range p.rules {
		m := r.Pattern.FindStringSubmatch(raw)
		if len(m) > 1 && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// Parse runs the Default parser.
func Parse(raw string) (string, bool) {
	return Default.Parse(raw)
}

// EmbedURL returns the player URL for id.
func EmbedURL(id string) string {
	if id == "" {
		return ""
	}
	return fmt.Sprintf(EmbedBase, id)
}
