package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compresr/bedrock-provider/internal/identity"
)

func TestSiteHasher_Hash(t *testing.T) {
	h := identity.New("site")

	// sha256("site42")
	assert.Equal(t, "3bc21e4cec1a0e8cb737b802fb92218a1675a2593de18f00124fff585ff237f8", h.Hash("42"))
	assert.Equal(t, h.Hash("42"), identity.New("site").Hash("42"))
	assert.NotEqual(t, h.Hash("42"), h.Hash("43"))
	assert.NotEqual(t, h.Hash("42"), identity.New("other").Hash("42"))
	assert.NotContains(t, h.Hash("42"), "42")
}

func TestSiteHasher_KnownVector(t *testing.T) {
	// sha256("") is the well-known empty digest.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", identity.New("").Hash(""))
	// Concatenation, not a keyed hash: the split point does not matter.
	assert.Equal(t, identity.New("ab").Hash("c"), identity.New("a").Hash("bc"))
}
