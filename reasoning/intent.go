package reasoning

import (
	"strings"
)

// possessiveIndicators and financialTerms are the exact wordlists confirmed
// against original_source/test_intent_classification.py: co-occurrence of a
// possessive pronoun with a financial term marks a query as account-specific.
var (
	possessiveIndicators = []string{"my", "mine", "i", "me", "our"}
	financialTerms       = []string{
		"balance", "transaction", "account", "card", "loan",
		"mortgage", "payment", "investment", "portfolio",
	}
)

// IsAccountSpecific classifies a query as account-specific (referring to the
// caller's personal account state) based on possessive/financial-term
// co-occurrence. Matching is done on lower-cased whitespace tokens so "my"
// does not match inside "summary".
func IsAccountSpecific(query string) bool {
	tokens := tokenize(query)
	return containsAny(tokens, possessiveIndicators) && containsAny(tokens, financialTerms)
}

// tokenize lower-cases and splits on non-letter runs, matching the
// Reasoner's rule-strategy tokenization so both strategies see the same
// token stream.
func tokenize(s string) []string {
	s = strings.ToLower(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
}

func containsAny(tokens []string, set []string) bool {
	for _, t := range tokens {
		for _, s := range set {
			if t == s {
				return true
			}
		}
	}
	return false
}
