package reformat

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkChars bounds the characters sent in one request.
const DefaultMaxChunkChars = 2000

// sentenceEnd matches a sentence terminator and any following spaces.
var sentenceEnd = regexp.MustCompile(`[。！？.!?]\s*`)

// SplitChunks breaks text into pieces of at most max characters. Whole
// paragraphs are packed together first; a paragraph that is too long on
// its own is split at sentence ends, and a sentence that is still too
// long is cut at the limit.
func SplitChunks(text string, max int) []string {
	if max <= 0 {
		max = DefaultMaxChunkChars
	}
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		n := utf8.RuneCountInString(para)
		if utf8.RuneCountInString(cur.String())+n+2 <= max {
			cur.WriteString(para)
			cur.WriteString("\n\n")
			continue
		}
		flush()
		if n <= max {
			cur.WriteString(para)
			cur.WriteString("\n\n")
			continue
		}
		for _, piece := range splitSentences(para, max) {
			if utf8.RuneCountInString(cur.String())+utf8.RuneCountInString(piece) > max {
				flush()
			}
			cur.WriteString(piece)
		}
		cur.WriteString("\n\n")
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// splitSentences cuts s after each sentence terminator, then hard-splits
// any sentence longer than max.
func splitSentences(s string, max int) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(s, -1) {
		out = append(out, hardSplit(s[start:loc[1]], max)...)
		start = loc[1]
	}
	if start < len(s) {
		out = append(out, hardSplit(s[start:], max)...)
	}
	return out
}

func hardSplit(s string, max int) []string {
	runes := []rune(s)
	if len(runes) <= max {
		return []string{s}
	}
	var out []string
	for len(runes) > max {
		out = append(out, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
