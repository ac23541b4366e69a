package moderation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/gigboard/community-moderation/internal/core/domain"
)

// Detector thresholds and score weights.
const (
	maxLinksPerMessage    = 3
	maxMentionsPerMessage = 6
	maxUppercaseRatio     = 0.75
	minCharacterRun       = 6

	weightProfanity     = 100
	weightScamKeywords  = 40
	weightLinkDensity   = 30
	weightBlockedDomain = 100
	weightMentionSpam   = 15
	weightUppercaseSpam = 15
	weightCharacterRuns = 10
	weightDuplicate     = 20
)

var (
	urlRegex     = regexp.MustCompile(`https?://[^\s<>"{}|\\^\x60\[\]]+`)
	mentionRegex = regexp.MustCompile(`@[a-z0-9_.-]{2,}`)
)

// profanityTerms is the fixed denylist matched as substrings against the
// normalized body.
var profanityTerms = []string{
	"fuck",
	"shit",
	"bitch",
	"asshole",
	"dickhead",
	"motherfucker",
}

// scamPhrases are high-risk phrases typical of off-platform payment and
// get-rich-quick spam in marketplace threads.
var scamPhrases = []string{
	"pay outside the platform",
	"guaranteed income",
	"double your money",
	"crypto giveaway",
	"100% guaranteed returns",
	"wire transfer only",
	"send a gift card",
	"western union",
	"work from home and earn",
	"contact me on telegram",
}

// blockedDomains are link targets never acceptable in community messages:
// URL shorteners that hide destinations and known logger/grabber hosts.
var blockedDomains = map[string]bool{
	"bit.ly":       true,
	"tinyurl.com":  true,
	"goo.gl":       true,
	"is.gd":        true,
	"cutt.ly":      true,
	"rebrand.ly":   true,
	"grabify.link": true,
	"iplogger.org": true,
}

// detectorInput carries both text forms: the sanitized body keeps original
// casing for the uppercase-ratio check, the normalized body is what denylist
// matching runs against.
type detectorInput struct {
	sanitized  string
	normalized string
	logger     *zerolog.Logger
}

type detectorFunc func(in detectorInput) *domain.Signal

// textDetectors are the pure, order-insensitive detectors. The
// duplicate-message detector lives on the engine because it reads message
// history.
var textDetectors = []detectorFunc{
	detectProfanity,
	detectScamKeywords,
	detectLinkDensity,
	detectBlockedDomain,
	detectMentionSpam,
	detectUppercaseSpam,
	detectCharacterRuns,
}

func detectProfanity(in detectorInput) *domain.Signal {
	matches := containedTerms(in.normalized, profanityTerms)
	if len(matches) == 0 {
		return nil
	}

	return &domain.Signal{
		Code:     domain.SignalProfanity,
		Message:  "message contains denylisted language",
		Severity: domain.SeverityCritical,
		Weight:   weightProfanity,
		Data:     map[string]any{"matches": matches},
	}
}

func detectScamKeywords(in detectorInput) *domain.Signal {
	matches := containedTerms(in.normalized, scamPhrases)
	if len(matches) == 0 {
		return nil
	}

	return &domain.Signal{
		Code:     domain.SignalScamKeywords,
		Message:  "message contains high-risk scam phrasing",
		Severity: domain.SeverityHigh,
		Weight:   weightScamKeywords,
		Data:     map[string]any{"matches": matches},
	}
}

func detectLinkDensity(in detectorInput) *domain.Signal {
	links := urlRegex.FindAllString(in.normalized, -1)
	if len(links) <= maxLinksPerMessage {
		return nil
	}

	return &domain.Signal{
		Code:     domain.SignalLinkDensity,
		Message:  fmt.Sprintf("message contains %d links (max %d)", len(links), maxLinksPerMessage),
		Severity: domain.SeverityHigh,
		Weight:   weightLinkDensity,
		Data:     map[string]any{"count": len(links)},
	}
}

func detectBlockedDomain(in detectorInput) *domain.Signal {
	var hits []string

	for _, raw := range urlRegex.FindAllString(in.normalized, -1) {
		host := extractHost(raw, in.logger)
		if host == "" {
			continue
		}

		if blockedDomains[host] {
			hits = append(hits, host)
		}
	}

	if len(hits) == 0 {
		return nil
	}

	return &domain.Signal{
		Code:     domain.SignalBlockedDomain,
		Message:  "message links to a blocked domain",
		Severity: domain.SeverityCritical,
		Weight:   weightBlockedDomain,
		Data:     map[string]any{"domains": hits},
	}
}

func detectMentionSpam(in detectorInput) *domain.Signal {
	mentions := mentionRegex.FindAllString(in.normalized, -1)
	if len(mentions) <= maxMentionsPerMessage {
		return nil
	}

	return &domain.Signal{
		Code:     domain.SignalMentionSpam,
		Message:  fmt.Sprintf("message mentions %d handles (max %d)", len(mentions), maxMentionsPerMessage),
		Severity: domain.SeverityMedium,
		Weight:   weightMentionSpam,
		Data:     map[string]any{"count": len(mentions)},
	}
}

func detectUppercaseSpam(in detectorInput) *domain.Signal {
	var letters, upper int

	for _, r := range in.sanitized {
		if !unicode.IsLetter(r) {
			continue
		}

		letters++

		if unicode.IsUpper(r) {
			upper++
		}
	}

	if letters == 0 {
		return nil
	}

	ratio := float64(upper) / float64(letters)
	if ratio <= maxUppercaseRatio {
		return nil
	}

	return &domain.Signal{
		Code:     domain.SignalUppercaseSpam,
		Message:  "message is mostly uppercase",
		Severity: domain.SeverityMedium,
		Weight:   weightUppercaseSpam,
		Data:     map[string]any{"ratio": ratio},
	}
}

// detectCharacterRuns looks for any character repeated minCharacterRun or
// more times in a row. Backreference patterns are not available in RE2, so
// this is a plain rune scan.
func detectCharacterRuns(in detectorInput) *domain.Signal {
	var (
		prev rune
		run  int
	)

	for _, r := range in.normalized {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}

		if run >= minCharacterRun {
			return &domain.Signal{
				Code:     domain.SignalCharacterRuns,
				Message:  "message contains long repeated character runs",
				Severity: domain.SeverityMedium,
				Weight:   weightCharacterRuns,
				Data:     map[string]any{"character": string(prev), "length": run},
			}
		}
	}

	return nil
}

func containedTerms(text string, terms []string) []string {
	var matches []string

	for _, term := range terms {
		if strings.Contains(text, term) {
			matches = append(matches, term)
		}
	}

	return matches
}

// extractHost parses a URL-ish match and returns the lowercased hostname with
// any www. prefix removed. Malformed matches are skipped so a broken URL can
// never abort an evaluation.
func extractHost(raw string, logger *zerolog.Logger) string {
	trimmed := strings.TrimRight(raw, ".,;:!?)")

	u, err := url.Parse(trimmed)
	if err != nil {
		if logger != nil {
			logger.Debug().Str("url", trimmed).Err(err).Msg("skipping unparseable link")
		}

		return ""
	}

	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
