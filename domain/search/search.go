package search

import (
	"strconv"
	"strings"
)

// Query represents the structured parameters of a message search.
// It decouples the raw user input from the actual index requirements.
type Query struct {
	RawInput string // The original input from the user
	Terms    string // The actual text to search in Bluge
	Author   string // Only messages of this author when set
	Limit    int    // Pagination: number of results
}

// NewSearchQuery parses a raw string to extract command-line style arguments.
// Example: /find "invoice" --author bob --limit 5
// Limit falls back to maxLimit when missing, invalid or above it.
func NewSearchQuery(input string, maxLimit int) Query {
	query := Query{
		RawInput: input,
		Limit:    maxLimit,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		// Handle flags like --author bob or --limit 5
		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "author":
				query.Author = val
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 && n < maxLimit {
					query.Limit = n
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		// If it's not a flag, it's a search term
		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, strings.Trim(part, `"`))
		}
	}

	query.Terms = strings.TrimSpace(strings.Join(textTerms, " "))
	return query
}
