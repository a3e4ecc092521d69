package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextKeepsShortTextWhole(t *testing.T) {
	chunks := chunkText("Hello Acme.\n\nI am applying.", 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello Acme.\n\nI am applying.", chunks[0])
}

func TestChunkTextCarriesOverlap(t *testing.T) {
	first := strings.Repeat("a", 60)
	second := strings.Repeat("b", 60)

	chunks := chunkText(first+"\n\n"+second, 100, 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0])
	assert.Equal(t, strings.Repeat("a", 10)+"\n\n"+second, chunks[1])
}

func TestChunkTextSplitsLongParagraphOnSentences(t *testing.T) {
	sentence := strings.Repeat("word ", 8) + "end."
	para := strings.Repeat(sentence+" ", 10)

	chunks := chunkText(para, 120, 0)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 120)
	}
}

func TestChunkTextIgnoresBlankInput(t *testing.T) {
	assert.Empty(t, chunkText("  \n\n  ", 100, 10))
}

func TestChunkTextNeverEmitsBareOverlap(t *testing.T) {
	first := strings.Repeat("a", 60)
	second := strings.Repeat("b", 95)

	chunks := chunkText(first+"\n\n"+second, 100, 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0])
	assert.Equal(t, second, chunks[1])
}
