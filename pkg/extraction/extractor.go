package extraction

import (
	"regexp"
	"strings"
)

// Extractor mines condition terms out of raw transcript text. It is a
// fallback used only when no structured condition list is available.
type Extractor struct {
	groups     []compiledGroup
	contextual []*regexp.Regexp
}

type compiledGroup struct {
	term string
	re   *regexp.Regexp
}

// Sentence patterns anchored on diagnostic phrasing. The capture stops at
// punctuation or a conjunction so list-like phrasing yields single terms.
var contextualPatterns = []string{
	`diagnosed with\s+([a-z][a-z\s\-']{0,60}?)(?:\s+and\b|[,.;:]|$)`,
	`patient has\s+([a-z][a-z\s\-']{0,60}?)(?:\s+and\b|[,.;:]|$)`,
	`suffering from\s+([a-z][a-z\s\-']{0,60}?)(?:\s+and\b|[,.;:]|$)`,
	`condition is\s+([a-z][a-z\s\-']{0,60}?)(?:\s+and\b|[,.;:]|$)`,
	`\bhas\s+([a-z][a-z\s\-']{0,60}?)(?:\s+and\b|[,.;:]|$)`,
}

// Captured fragments containing these words are scheduling or therapy
// chatter, not conditions.
var disqualifiers = []string{"appointment", "medication", "treatment"}

func NewExtractor(cfg RulesConfig) (*Extractor, error) {
	groups := make([]compiledGroup, 0, len(cfg.Groups))
	for _, group := range cfg.Groups {
		re, err := regexp.Compile(group.Pattern)
		if err != nil {
			return nil, err
		}
		groups = append(groups, compiledGroup{term: group.Term, re: re})
	}

	contextual := make([]*regexp.Regexp, 0, len(contextualPatterns))
	for _, pattern := range contextualPatterns {
		contextual = append(contextual, regexp.MustCompile(pattern))
	}

	return &Extractor{groups: groups, contextual: contextual}, nil
}

// Extract returns lowercased condition terms in first-seen order with
// duplicates removed. Texts with no keyword or phrase matches yield an
// empty slice.
func (e *Extractor) Extract(text string) []string {
	lowered := strings.ToLower(text)
	seen := make(map[string]struct{})
	conditions := []string{}

	add := func(term string) {
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		conditions = append(conditions, term)
	}

	// Keyword pass: every alternation match canonicalizes to the group term.
	for _, group := range e.groups {
		if group.re.MatchString(lowered) {
			add(group.term)
		}
	}

	// Contextual pass: diagnostic phrasing with a free-text capture.
	for _, re := range e.contextual {
		for _, match := range re.FindAllStringSubmatch(lowered, -1) {
			candidate := strings.Trim(strings.TrimSpace(match[1]), "-'")
			if !acceptCandidate(candidate) {
				continue
			}
			add(candidate)
		}
	}

	return conditions
}

func acceptCandidate(candidate string) bool {
	if len(candidate) <= 2 || len(candidate) >= 50 {
		return false
	}
	for _, word := range disqualifiers {
		if strings.Contains(candidate, word) {
			return false
		}
	}
	return true
}
