package workflow

import (
	"regexp"
	"strings"
)

var (
	affirmRe = regexp.MustCompile(`^(yes|y|yeah|yep|sure|ok|okay|skip|proceed|continue)$`)
	denyRe   = regexp.MustCompile(`^(no|n|nope)$`)
)

// Affirmation is the outcome of classifying a short confirmation reply.
type Affirmation int

const (
	AffirmNone Affirmation = iota
	AffirmYes
	AffirmNo
)

// ClassifyAffirmation decides whether a short reply is a standalone
// yes or no. Anything longer than a bare confirmation word is treated
// as free-form input and returns AffirmNone.
func ClassifyAffirmation(input string) Affirmation {
	s := strings.ToLower(strings.TrimSpace(input))
	switch {
	case affirmRe.MatchString(s):
		return AffirmYes
	case denyRe.MatchString(s):
		return AffirmNo
	default:
		return AffirmNone
	}
}

var analysisKeywords = []string{"yes", "proceed", "continue", "run", "analyze", "ok"}

// WantsAnalysis reports whether a summary-stage reply asks to start the
// final analysis. Matching is substring based after stripping spaces.
func WantsAnalysis(input string) bool {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(input)), " ", "")
	for _, kw := range analysisKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

var rerunKeywords = []string{"rerun", "run", "runagain"}

// WantsRerun reports whether a post-analysis reply asks to run the
// analysis again.
func WantsRerun(input string) bool {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(input)), " ", "")
	for _, kw := range rerunKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// IsRerunCommand reports whether the reply is exactly a rerun command,
// with no surrounding text. Used on the error step where loose matching
// would swallow unrelated input.
func IsRerunCommand(input string) bool {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(input)), " ", "")
	for _, kw := range rerunKeywords {
		if s == kw {
			return true
		}
	}
	return false
}
