package retrieval

import (
	"regexp"
	"strings"
)

// stopWords are query/SQL function words that carry no signal about
// which tables a question concerns.
var stopWords = map[string]bool{
	"show":   true,
	"get":    true,
	"find":   true,
	"list":   true,
	"all":    true,
	"from":   true,
	"where":  true,
	"select": true,
	"the":    true,
	"and":    true,
	"with":   true,
	"for":    true,
	"that":   true,
	"have":   true,
}

var nonWord = regexp.MustCompile(`\W+`)

// Tokenize lower-cases the query, replaces non-word characters with
// whitespace, and keeps tokens longer than two characters that are not
// stop words.
func Tokenize(query string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(query), " ")

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 2 || stopWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
