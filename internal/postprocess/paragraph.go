package postprocess

import (
	"regexp"
	"strings"
)

// DefaultLineSpacingThreshold is the gap, in average line heights, that
// separates two paragraphs.
const DefaultLineSpacingThreshold = 1.5

// Paragraph is a run of consecutive lines. Text concatenates the lines
// without a separator; OCR line breaks are treated as soft wraps.
type Paragraph struct {
	Lines      []MergedLine `json:"lines"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
}

// List markers and bullets that open a new paragraph.
var paragraphStartPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+[.、）)]`),
	regexp.MustCompile(`^[一二三四五六七八九十]+[.、）)]`),
	regexp.MustCompile(`^[（(]\d+[）)]`),
	regexp.MustCompile(`^[•·▪▸►◆○●■□]`),
}

// isParagraphStart reports whether a line looks like it opens a paragraph:
// indented by four spaces or a tab, or led by a list marker.
func isParagraphStart(text string) bool {
	if strings.HasPrefix(text, "    ") || strings.HasPrefix(text, "\t") {
		return true
	}
	trimmed := strings.TrimSpace(text)
	for _, re := range paragraphStartPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// Rebuild groups top-to-bottom lines into paragraphs. A new paragraph
// begins when the gap above a line exceeds threshold times the average
// line height, or when the line itself looks like a paragraph start.
// A non-positive threshold selects DefaultLineSpacingThreshold.
func Rebuild(lines []MergedLine, threshold float64) []Paragraph {
	if len(lines) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultLineSpacingThreshold
	}

	var total float64
	for _, l := range lines {
		total += l.Height()
	}
	cutoff := threshold * total / float64(len(lines))

	var paragraphs []Paragraph
	current := []MergedLine{lines[0]}
	for i := 1; i < len(lines); i++ {
		prev, cur := lines[i-1], lines[i]
		gap := cur.YMin - prev.YMax
		if gap > cutoff || isParagraphStart(cur.Text) {
			paragraphs = append(paragraphs, newParagraph(current))
			current = []MergedLine{cur}
			continue
		}
		current = append(current, cur)
	}
	paragraphs = append(paragraphs, newParagraph(current))

	return paragraphs
}

func newParagraph(lines []MergedLine) Paragraph {
	var b strings.Builder
	var conf float64
	for _, l := range lines {
		b.WriteString(l.Text)
		conf += l.Confidence
	}
	return Paragraph{
		Lines:      lines,
		Text:       b.String(),
		Confidence: conf / float64(len(lines)),
	}
}
