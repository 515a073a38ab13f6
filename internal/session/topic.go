package session

import (
	"regexp"
	"strings"
	"unicode"
)

// maxTopicLen is the display budget for a derived topic.
const maxTopicLen = 35

// topicEllipsis marks a truncated topic.
const topicEllipsis = "…"

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	relPathPattern = regexp.MustCompile(`\.\.?/\S+`)
	absPathPattern = regexp.MustCompile(`^/\S+`)
)

// fillerPrefixes are conversational openers stripped from the start of a
// message before it becomes a topic, checked in order, case-insensitively.
// Longer phrases come before their sub-phrases so "can you please " is
// peeled in one step rather than leaving "please " behind for a later pass.
var fillerPrefixes = []string{
	"i want you to ",
	"i want to ",
	"i need you to ",
	"i need to ",
	"i would like to ",
	"i'd like to ",
	"can you please ",
	"could you please ",
	"can you ",
	"could you ",
	"would you ",
	"will you ",
	"please ",
	"help me ",
	"let's ",
	"lets ",
	"we need to ",
	"we should ",
	"you should ",
	"go ahead and ",
	"try to ",
	"just ",
	"now ",
	"and ",
	"the ",
	"this ",
	"a ",
	"an ",
}

// fillerPasses bounds how many rounds of prefix stripping run. Three rounds
// peel chained openers ("Can you please help me fix...") without ever
// looping on adversarial input.
const fillerPasses = 3

// ExtractTopic turns a raw first user message into a short display label.
// The stripping is best-effort: ambiguous or partial matches are accepted,
// the goal is a readable label, not a grammatical one. Empty input, pure
// punctuation, and bare URLs all yield "".
func ExtractTopic(message string) string {
	s := message
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}

	s = urlPattern.ReplaceAllString(s, "")
	s = relPathPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = absPathPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	for pass := 0; pass < fillerPasses; pass++ {
		stripped := false
		for _, prefix := range fillerPrefixes {
			if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
				s = s[len(prefix):]
				stripped = true
			}
		}
		if !stripped {
			break
		}
	}

	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if s == "" {
		return ""
	}

	s = capitalizeFirst(s)
	return truncateAtWord(s, maxTopicLen)
}

// capitalizeFirst upper-cases the first rune.
func capitalizeFirst(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// truncateAtWord cuts s to at most limit runes, backing up to the last space
// inside the window when there is one, and appends the ellipsis marker.
func truncateAtWord(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	window := string(runes[:limit])
	if idx := strings.LastIndexByte(window, ' '); idx > 0 {
		window = window[:idx]
	}
	return strings.TrimRight(window, " ") + topicEllipsis
}
