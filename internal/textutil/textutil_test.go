package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"routes", "use", "api", "v1", "resource"}, Tokens("Routes use /api/v1/{resource}"))
	assert.Empty(t, Tokens("  ---  "))
}

func TestQueryTerms(t *testing.T) {
	got := QueryTerms("How should I structure a new route? new ROUTE")
	assert.Equal(t, []string{"how", "should", "structure", "new", "route"}, got)
}

func TestSignificantTerms(t *testing.T) {
	got := SignificantTerms("Improve the storage layer and the storage handling")
	assert.Equal(t, []string{"improve", "storage", "layer", "handling"}, got)
	assert.Empty(t, SignificantTerms("the and of"))
}

func TestKeywords(t *testing.T) {
	text := "Deploy with the deploy script. The script tags the release, then deploy again. 2024 2024 2024"
	got := Keywords(text, 3)
	assert.Equal(t, []string{"deploy", "script", "tags"}, got)
}

func TestKeywordsDefaultLimit(t *testing.T) {
	got := Keywords("alpha beta gamma delta epsilon zeta eta", 0)
	assert.Len(t, got, DefaultKeywords)
	assert.Equal(t, "alpha", got[0])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "any", Truncate("any", 0))
}
