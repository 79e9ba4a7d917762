package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/smartpdf/internal/ocr"
)

func frag(text string, conf, x0, y0, x1, y1 float64) ocr.Fragment {
	return ocr.Fragment{Text: text, Confidence: conf, Box: ocr.QuadFromBounds(x0, y0, x1, y1)}
}

func line(text string, y0, y1 float64) MergedLine {
	return MergedLine{Text: text, Confidence: 1, XMin: 0, XMax: 100, YMin: y0, YMax: y1}
}

func TestMergeSameRow(t *testing.T) {
	frags := []ocr.Fragment{
		frag("Hello", 0.9, 10, 10, 50, 30),
		frag("World", 0.7, 60, 12, 100, 32),
	}

	lines := Merge(SortFragments(frags))
	require.Len(t, lines, 1)
	assert.Equal(t, "Hello World", lines[0].Text)
	assert.InDelta(t, 0.8, lines[0].Confidence, 1e-9)
	assert.Equal(t, 10.0, lines[0].XMin)
	assert.Equal(t, 10.0, lines[0].YMin)
	assert.Equal(t, 100.0, lines[0].XMax)
	assert.Equal(t, 32.0, lines[0].YMax)
	assert.Equal(t, 2, lines[0].Fragments)
}

func TestMergeOrdersRowByX(t *testing.T) {
	// Same row, right fragment sorts first on y.
	frags := []ocr.Fragment{
		frag("World", 1, 60, 10, 100, 30),
		frag("Hello", 1, 10, 11, 50, 31),
	}
	lines := Merge(SortFragments(frags))
	require.Len(t, lines, 1)
	assert.Equal(t, "Hello World", lines[0].Text)
}

func TestMergeSeparateRows(t *testing.T) {
	frags := []ocr.Fragment{
		frag("first", 1, 10, 10, 50, 30),
		frag("second", 1, 10, 40, 50, 60),
		frag("third", 1, 10, 70, 50, 90),
	}
	lines := Merge(SortFragments(frags))
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{lines[0].Text, lines[1].Text, lines[2].Text})
}

func TestMergeAnchorsOnFirstFragment(t *testing.T) {
	// b overlaps a enough, c overlaps b but not a: c starts a new row.
	frags := []ocr.Fragment{
		frag("a", 1, 0, 0, 10, 20),
		frag("b", 1, 20, 8, 30, 28),
		frag("c", 1, 40, 17, 50, 37),
	}
	lines := Merge(SortFragments(frags))
	require.Len(t, lines, 2)
	assert.Equal(t, "a b", lines[0].Text)
	assert.Equal(t, "c", lines[1].Text)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(nil))
}

func TestVerticalOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b ocr.Fragment
		want float64
	}{
		{"disjoint", frag("", 0, 0, 0, 10, 10), frag("", 0, 0, 20, 10, 30), 0},
		{"touching", frag("", 0, 0, 0, 10, 10), frag("", 0, 0, 10, 10, 20), 0},
		{"contained", frag("", 0, 0, 0, 10, 40), frag("", 0, 0, 10, 10, 20), 1},
		{"half", frag("", 0, 0, 0, 10, 20), frag("", 0, 0, 10, 10, 30), 0.5},
		{"zero height", frag("", 0, 0, 5, 10, 5), frag("", 0, 0, 0, 10, 10), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, verticalOverlap(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRebuildJoinsCloseLines(t *testing.T) {
	lines := []MergedLine{
		line("This is line 1.", 10, 30),
		line("This is line 2.", 35, 55),
	}
	paras := Rebuild(lines, 1.5)
	require.Len(t, paras, 1)
	assert.Equal(t, "This is line 1.This is line 2.", paras[0].Text)
	assert.Len(t, paras[0].Lines, 2)
}

func TestRebuildSplitsOnGap(t *testing.T) {
	lines := []MergedLine{
		line("This is line 1.", 10, 30),
		line("This is line 2.", 70, 90),
	}
	paras := Rebuild(lines, 1.5)
	require.Len(t, paras, 2)
	assert.Equal(t, "This is line 1.", paras[0].Text)
	assert.Equal(t, "This is line 2.", paras[1].Text)
}

func TestRebuildDefaultThreshold(t *testing.T) {
	lines := []MergedLine{line("a", 0, 20), line("b", 45, 65)}
	// gap 25 is under 1.5 * 20.
	assert.Len(t, Rebuild(lines, 0), 1)
}

func TestRebuildConfidence(t *testing.T) {
	a, b := line("a", 0, 20), line("b", 22, 42)
	a.Confidence, b.Confidence = 0.6, 1.0
	paras := Rebuild([]MergedLine{a, b}, 1.5)
	require.Len(t, paras, 1)
	assert.InDelta(t, 0.8, paras[0].Confidence, 1e-9)
}

func TestIsParagraphStart(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"    indented", true},
		{"\tindented", true},
		{"1. first", true},
		{"12、item", true},
		{"3) item", true},
		{"4）item", true},
		{"一、总则", true},
		{"十二.条款", true},
		{"(1) note", true},
		{"（2）注", true},
		{"• bullet", true},
		{"■ box", true},
		{"  2. leading spaces trimmed", true},
		{"plain text", false},
		{"2024 was a year", false},
		{"  two spaces", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, isParagraphStart(tt.text))
		})
	}
}

func TestRebuildListMarkers(t *testing.T) {
	lines := []MergedLine{
		line("Intro text", 0, 20),
		line("1. first item", 22, 42),
		line("continues here", 44, 64),
		line("2. second item", 66, 86),
	}
	paras := Rebuild(lines, 1.5)
	require.Len(t, paras, 3)
	assert.Equal(t, "1. first itemcontinues here", paras[1].Text)
}

func para(text string) Paragraph {
	return Paragraph{Text: text, Confidence: 1}
}

func pagesWith(n int, build func(i int) []Paragraph) []ProcessedPage {
	pages := make([]ProcessedPage, n)
	for i := range pages {
		pages[i] = ProcessedPage{Page: i, Paragraphs: build(i)}
	}
	return pages
}

func TestStripHeaders(t *testing.T) {
	pages := pagesWith(5, func(i int) []Paragraph {
		return []Paragraph{para("Company Confidential"), para("body"), para(string(rune('a' + i)))}
	})

	out := StripHeadersFooters(pages, 3)
	for _, p := range out {
		assert.Equal(t, "Company Confidential", p.Header)
		assert.Empty(t, p.Footer)
		require.Len(t, p.Paragraphs, 2)
		assert.Equal(t, "body", p.Paragraphs[0].Text)
	}
}

func TestStripKeepsUntrimmedHeader(t *testing.T) {
	pages := pagesWith(3, func(i int) []Paragraph {
		if i == 0 {
			return []Paragraph{para("  Report  "), para("x")}
		}
		return []Paragraph{para("Report"), para("y")}
	})
	out := StripHeadersFooters(pages, 3)
	assert.Equal(t, "  Report  ", out[0].Header)
	assert.Equal(t, "Report", out[1].Header)
}

func TestStripFooters(t *testing.T) {
	pages := pagesWith(4, func(i int) []Paragraph {
		return []Paragraph{para(string(rune('a' + i))), para("Page footer")}
	})
	out := StripHeadersFooters(pages, 3)
	for _, p := range out {
		assert.Equal(t, "Page footer", p.Footer)
		assert.Len(t, p.Paragraphs, 1)
	}
}

func TestStripBelowThreshold(t *testing.T) {
	pages := pagesWith(2, func(i int) []Paragraph {
		return []Paragraph{para("Header"), para("body")}
	})
	out := StripHeadersFooters(pages, 3)
	for _, p := range out {
		assert.Empty(t, p.Header)
		assert.Len(t, p.Paragraphs, 2)
	}
}

func TestStripSingleParagraphPage(t *testing.T) {
	// "X" is both a first and last paragraph everywhere. The header check
	// runs first and empties the page, so no footer is recorded.
	pages := pagesWith(3, func(i int) []Paragraph {
		return []Paragraph{para("X")}
	})
	out := StripHeadersFooters(pages, 3)
	for _, p := range out {
		assert.Equal(t, "X", p.Header)
		assert.Empty(t, p.Footer)
		assert.Empty(t, p.Paragraphs)
	}
}

func TestStripIsIdempotent(t *testing.T) {
	pages := pagesWith(5, func(i int) []Paragraph {
		return []Paragraph{para("Head"), para("Chapter"), para("body"), para("Chapter end"), para("Foot")}
	})
	first := StripHeadersFooters(pages, 3)
	snapshot := make([][]string, len(first))
	for i, p := range first {
		snapshot[i] = p.ParagraphTexts()
	}

	second := StripHeadersFooters(first, 3)
	for i, p := range second {
		assert.Equal(t, snapshot[i], p.ParagraphTexts())
		assert.Equal(t, "Head", p.Header)
		assert.Equal(t, "Foot", p.Footer)
	}
}

func TestProcessedPageText(t *testing.T) {
	p := ProcessedPage{Paragraphs: []Paragraph{{Text: "one", Confidence: 0.5}, {Text: "two", Confidence: 1}}}
	assert.Equal(t, "one\n\ntwo", p.Text())
	assert.Equal(t, []string{"one", "two"}, p.ParagraphTexts())
	assert.InDelta(t, 0.75, p.ParagraphConfidence(), 1e-9)
	assert.Equal(t, 0.0, ProcessedPage{}.ParagraphConfidence())
}

func TestFilterMargins(t *testing.T) {
	frags := []ocr.Fragment{
		frag("header", 1, 100, 10, 300, 40),  // center y 25
		frag("body", 1, 100, 400, 300, 430),   // center y 415
		frag("footer", 1, 100, 960, 300, 990), // center y 975
		frag("sidenote", 1, 5, 500, 45, 520),  // center x 25
	}

	kept := FilterMargins(frags, 1000, 1000, Margins{Top: 5, Bottom: 5, Left: 5})
	require.Len(t, kept, 1)
	assert.Equal(t, "body", kept[0].Text)

	assert.Len(t, FilterMargins(frags, 1000, 1000, Margins{}), 4)
}

func TestMarginsValidate(t *testing.T) {
	assert.NoError(t, Margins{Top: 10, Bottom: 10}.Validate())
	assert.Error(t, Margins{Top: -1}.Validate())
	assert.Error(t, Margins{Right: 101}.Validate())
	assert.Error(t, Margins{Top: 60, Bottom: 40}.Validate())
	assert.Error(t, Margins{Left: 50, Right: 50}.Validate())
}

func TestProcessorProcess(t *testing.T) {
	p := NewProcessor(Config{LowConfidenceThreshold: 0.5, Margins: Margins{Bottom: 10}})
	frags := []ocr.Fragment{
		frag("World", 0.3, 60, 12, 100, 32),
		frag("Hello", 0.9, 10, 10, 50, 30),
		frag("Second paragraph", 0.8, 10, 200, 200, 220),
		frag("12", 0.1, 480, 960, 500, 980),
	}

	page := p.Process(7, frags, 500, 1000)
	assert.Equal(t, 7, page.Page)
	assert.Equal(t, []string{"Hello World", "Second paragraph"}, page.ParagraphTexts())
	assert.InDelta(t, (0.3+0.9+0.8)/3, page.Confidence, 1e-9)
	assert.Equal(t, 0, page.LowConfidenceLines, "merged line averages 0.6")
}

func TestProcessorFinish(t *testing.T) {
	build := func() []ProcessedPage {
		return pagesWith(3, func(i int) []Paragraph { return []Paragraph{para("H"), para("b")} })
	}

	off := NewProcessor(Config{RemoveHeaderFooter: false})
	for _, pg := range off.Finish(build()) {
		assert.Empty(t, pg.Header)
	}

	on := NewProcessor(Config{RemoveHeaderFooter: true})
	for _, pg := range on.Finish(build()) {
		assert.Equal(t, "H", pg.Header)
	}
}

func TestFormatText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"你好，  世界。 再见", "你好，世界。再见"},
		{"one,two.Three", "one, two. Three"},
		{"a    b", "a b"},
		{"囗 and 〇", "□ and ○"},
		{"  padded  ", "padded"},
		{"第一段。\n\n第二段", "第一段。\n\n第二段"},
		{"pi is 3.14", "pi is 3.14"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatText(tt.in))
		})
	}
}
