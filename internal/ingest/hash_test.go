package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentHash_WhitespaceAndMarkupInsensitive(t *testing.T) {
	base := ContentHash("<p>Hello  world</p>")

	require.Equal(t, base, ContentHash("<p>Hello world</p>"), "collapsed whitespace must not change the hash")
	require.Equal(t, base, ContentHash("<div>Hello\n\tworld</div>"), "tag changes around identical text must not change the hash")
	require.Equal(t, base, ContentHash("Hello world"), "plain text equals its markup rendering")
}

func TestContentHash_TextChangesHash(t *testing.T) {
	require.NotEqual(t, ContentHash("<p>Hello world</p>"), ContentHash("<p>Hello there</p>"))
}

func TestContentHash_EmptyContent(t *testing.T) {
	require.Equal(t, ContentHash(""), ContentHash("   \n\t "))
	require.NotEmpty(t, ContentHash(""))
}
