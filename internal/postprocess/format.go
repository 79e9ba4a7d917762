package postprocess

import (
	"regexp"
	"strings"
)

var (
	cjkPunctSpace   = regexp.MustCompile(`([，。！？；：、])[ \t]+`)
	asciiPunctWord  = regexp.MustCompile(`([,.:;!?])([a-zA-Z])`)
	repeatedSpaces  = regexp.MustCompile(` +`)
	glyphCorrection = strings.NewReplacer(
		"囗", "□",
		"〇", "○",
		"―", "—",
	)
)

// FormatText normalizes punctuation spacing and fixes glyphs OCR engines
// commonly confuse. It is applied to text before reformatting.
func FormatText(text string) string {
	text = cjkPunctSpace.ReplaceAllString(text, "$1")
	text = asciiPunctWord.ReplaceAllString(text, "$1 $2")
	text = repeatedSpaces.ReplaceAllString(text, " ")
	text = glyphCorrection.Replace(text)
	return strings.TrimSpace(text)
}
