package router

import (
	"strings"

	"github.com/dyluth/tandem/internal/config"
	"github.com/dyluth/tandem/pkg/board"
)

// Classifier decides which authority owns a request.
type Classifier interface {
	Classify(text string) board.Authority
}

// KeywordClassifier routes by substring matches against fixed keyword sets.
// Classify is a pure function of its input and the tables.
type KeywordClassifier struct {
	crossCutting []string
	build        []string
	infra        []string
}

// NewKeywordClassifier builds a classifier from the routing tables.
func NewKeywordClassifier(cfg config.RoutingConfig) *KeywordClassifier {
	return &KeywordClassifier{
		crossCutting: lowerAll(cfg.CrossCutting),
		build:        lowerAll(cfg.BuildKeywords),
		infra:        lowerAll(cfg.InfraKeywords),
	}
}

// Classify applies, in order: cross-cutting keywords (both), the
// deploy-plus-build/test rule (both), then the infra vs build score.
// Ties and all-zero scores go to primary.
func (k *KeywordClassifier) Classify(text string) board.Authority {
	text = strings.ToLower(text)

	if containsAny(text, k.crossCutting) {
		return board.AuthorityBoth
	}
	if strings.Contains(text, "deploy") && (strings.Contains(text, "build") || strings.Contains(text, "test")) {
		return board.AuthorityBoth
	}

	infra := score(text, k.infra)
	if infra > 0 && infra > score(text, k.build) {
		return board.AuthorityMirror
	}
	return board.AuthorityPrimary
}

func score(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func containsAny(text string, keywords []string) bool {
	return score(text, keywords) > 0
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
