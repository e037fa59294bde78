package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSearchQuery(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		terms  string
		author string
		limit  int
	}{
		{name: "plain terms", input: "release notes", terms: "release notes", limit: 20},
		{name: "command and quotes", input: `/find "invoice"`, terms: "invoice", limit: 20},
		{name: "author and limit", input: "deploy --author bob --limit 5", terms: "deploy", author: "bob", limit: 5},
		{name: "limit above max is capped", input: "deploy --limit 500", terms: "deploy", limit: 20},
		{name: "invalid limit is ignored", input: "deploy --limit abc", terms: "deploy", limit: 20},
		{name: "dangling flag is a term", input: "deploy --author", terms: "deploy --author", limit: 20},
		{name: "only flags", input: "--author bob", author: "bob", limit: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewSearchQuery(tt.input, 20)
			require.Equal(t, tt.input, q.RawInput)
			require.Equal(t, tt.terms, q.Terms)
			require.Equal(t, tt.author, q.Author)
			require.Equal(t, tt.limit, q.Limit)
		})
	}
}
