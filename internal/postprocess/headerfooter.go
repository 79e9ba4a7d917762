package postprocess

import "strings"

// DefaultRepeatThreshold is how many pages must share a first or last
// paragraph before it is treated as a header or footer.
const DefaultRepeatThreshold = 3

// ProcessedPage is the reconstructed text of one recognized page.
type ProcessedPage struct {
	Page               int         `json:"page"`
	Paragraphs         []Paragraph `json:"paragraphs"`
	Header             string      `json:"header,omitempty"`
	Footer             string      `json:"footer,omitempty"`
	Confidence         float64     `json:"confidence"`
	LowConfidenceLines int         `json:"low_confidence_lines,omitempty"`
}

// Text joins paragraph texts with a blank line.
func (p ProcessedPage) Text() string {
	texts := make([]string, len(p.Paragraphs))
	for i, para := range p.Paragraphs {
		texts[i] = para.Text
	}
	return strings.Join(texts, "\n\n")
}

// ParagraphTexts returns each paragraph's text in order.
func (p ProcessedPage) ParagraphTexts() []string {
	texts := make([]string, len(p.Paragraphs))
	for i, para := range p.Paragraphs {
		texts[i] = para.Text
	}
	return texts
}

// ParagraphConfidence averages the paragraph confidences, 0 when empty.
func (p ProcessedPage) ParagraphConfidence() float64 {
	if len(p.Paragraphs) == 0 {
		return 0
	}
	var sum float64
	for _, para := range p.Paragraphs {
		sum += para.Confidence
	}
	return sum / float64(len(p.Paragraphs))
}

// StripHeadersFooters removes first and last paragraphs whose trimmed text
// repeats on at least threshold pages, recording them as the page header
// or footer. Pages are modified in place and returned. Nothing happens
// when there are fewer than threshold pages.
//
// Pages that already carry a header are skipped for header detection
// and likewise for footers, so running the filter on its own output
// changes nothing.
func StripHeadersFooters(pages []ProcessedPage, threshold int) []ProcessedPage {
	if threshold <= 0 {
		threshold = DefaultRepeatThreshold
	}
	if len(pages) < threshold {
		return pages
	}

	firsts := make(map[string]int)
	lasts := make(map[string]int)
	for _, p := range pages {
		if len(p.Paragraphs) == 0 {
			continue
		}
		if p.Header == "" {
			if s := strings.TrimSpace(p.Paragraphs[0].Text); s != "" {
				firsts[s]++
			}
		}
		if p.Footer == "" {
			if s := strings.TrimSpace(p.Paragraphs[len(p.Paragraphs)-1].Text); s != "" {
				lasts[s]++
			}
		}
	}

	headers := candidates(firsts, threshold)
	footers := candidates(lasts, threshold)
	if len(headers) == 0 && len(footers) == 0 {
		return pages
	}

	for i := range pages {
		p := &pages[i]
		if p.Header == "" && len(p.Paragraphs) > 0 {
			first := p.Paragraphs[0]
			if headers[strings.TrimSpace(first.Text)] {
				p.Header = first.Text
				p.Paragraphs = p.Paragraphs[1:]
			}
		}
		// Re-read the list: a one-paragraph page may have just lost it.
		if p.Footer == "" && len(p.Paragraphs) > 0 {
			last := p.Paragraphs[len(p.Paragraphs)-1]
			if footers[strings.TrimSpace(last.Text)] {
				p.Footer = last.Text
				p.Paragraphs = p.Paragraphs[:len(p.Paragraphs)-1]
			}
		}
	}
	return pages
}

func candidates(counts map[string]int, threshold int) map[string]bool {
	out := make(map[string]bool)
	for s, n := range counts {
		if n >= threshold {
			out[s] = true
		}
	}
	return out
}
