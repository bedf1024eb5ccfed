package dialogue

import (
	"strings"

	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

// Intent is the coarse purpose of a user message.
type Intent string

// Intents recognized before extraction.
const (
	IntentGreeting Intent = "greeting"
	IntentEnd      Intent = "end"
	IntentRestart  Intent = "restart"
	IntentSearch   Intent = "search"
	IntentInquiry  Intent = "inquiry"
)

var (
	greetingWords = map[string]bool{
		"hello": true, "hi": true, "hey": true, "start": true, "begin": true,
		"good": true, "morning": true, "afternoon": true, "evening": true, "there": true,
	}
	endPhrases     = []string{"end", "exit", "quit", "bye", "goodbye", "thank you", "thanks"}
	restartPhrases = []string{"restart", "start over", "new search", "reset"}
	searchPhrases  = []string{"search now", "just search", "show me", "go ahead and search", "find it now"}
)

// endMaxWords keeps "end" phrases from matching product talk such as "end cap for a rail".
const endMaxWords = 4

// Classify detects the intent of a message by whole-word keyword matching.
func Classify(text string) Intent {
	folded := product.Fold(text)
	words := strings.Fields(folded)
	if len(words) == 0 {
		return IntentInquiry
	}
	padded := " " + folded + " "
	has := func(phrases []string) bool {
		for _, p := range phrases {
			if strings.Contains(padded, " "+p+" ") {
				return true
			}
		}
		return false
	}

	switch {
	case has(restartPhrases):
		return IntentRestart
	case len(words) <= endMaxWords && has(endPhrases):
		return IntentEnd
	case has(searchPhrases):
		return IntentSearch
	case onlyGreeting(words):
		return IntentGreeting
	default:
		return IntentInquiry
	}
}

func onlyGreeting(words []string) bool {
	for _, w := range words {
		if !greetingWords[w] {
			return false
		}
	}
	return true
}
