package services

import (
	"strings"
	"unicode/utf8"
)

// chunkText splits text on paragraph and then sentence boundaries into pieces
// of at most maxChunkSize runes, carrying overlap runes between neighbours.
func chunkText(text string, maxChunkSize int, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	var chunks []string
	var current strings.Builder

	// flush closes the current chunk. The next chunk starts with its tail
	// only if a piece of next runes still fits after it.
	flush := func(next int) {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		current.Reset()
		tail := lastRunes(chunks[len(chunks)-1], overlap)
		if utf8.RuneCountInString(tail)+next+2 <= maxChunkSize {
			current.WriteString(tail)
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if n := utf8.RuneCountInString(para); n <= maxChunkSize {
			if utf8.RuneCountInString(current.String())+n+2 > maxChunkSize {
				flush(n)
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
			continue
		}

		for _, sentence := range splitIntoSentences(para) {
			n := utf8.RuneCountInString(sentence)
			if utf8.RuneCountInString(current.String())+n+1 > maxChunkSize {
				flush(n)
			}
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var result []string
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

func lastRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	return string(runes[len(runes)-n:])
}
