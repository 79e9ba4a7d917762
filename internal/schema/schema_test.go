package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/smartpdf/internal/classify"
	"github.com/jackzampolin/smartpdf/internal/pipeline"
)

func TestAll(t *testing.T) {
	schemas, err := All()
	require.NoError(t, err)

	var names []string
	for _, s := range schemas {
		names = append(names, s.Name)
		assert.NotEmpty(t, s.JSON)
	}
	assert.Equal(t, []string{Classification, PageRecord, Result}, names)
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("nope")
	assert.ErrorIs(t, err, ErrUnknownSchema)
	assert.ErrorIs(t, Validate("nope", map[string]any{}), ErrUnknownSchema)
}

func TestValidatePageRecord(t *testing.T) {
	tests := []struct {
		name    string
		rec     any
		wantErr bool
	}{
		{
			name: "ocr record",
			rec: pipeline.PageRecord{
				Page: 2, Text: "a\n\nb", Confidence: 0.87, Paragraphs: []string{"a", "b"},
				Method: pipeline.MethodOCR, Header: "Title", LowConfidenceLines: 1,
			},
		},
		{
			name: "error record",
			rec:  pipeline.PageRecord{Page: 0, Paragraphs: []string{}, Method: pipeline.MethodOCR, Error: "page 1 render: boom"},
		},
		{
			name:    "confidence out of range",
			rec:     pipeline.PageRecord{Page: 0, Confidence: 1.5, Paragraphs: []string{}, Method: pipeline.MethodExtract},
			wantErr: true,
		},
		{
			name:    "unknown method",
			rec:     pipeline.PageRecord{Page: 0, Paragraphs: []string{}, Method: "magic"},
			wantErr: true,
		},
		{
			name:    "null paragraphs",
			rec:     pipeline.PageRecord{Page: 0, Method: pipeline.MethodExtract},
			wantErr: true,
		},
		{
			name:    "extra field",
			rec:     map[string]any{"page": 0, "text": "", "confidence": 1, "paragraphs": []string{}, "method": "extract", "bogus": true},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(PageRecord, tt.rec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateClassification(t *testing.T) {
	good := &classify.DocumentClassification{
		PageCount:       3,
		Type:            classify.TypeMixed,
		TextPages:       []int{0},
		ImagePages:      []int{1, 2},
		TotalChars:      120,
		AvgCharsPerPage: 40,
	}
	require.NoError(t, Validate(Classification, good))

	bad := *good
	bad.Type = "scanned"
	assert.Error(t, Validate(Classification, &bad))
}

func TestValidateResultResolvesRefs(t *testing.T) {
	res := &pipeline.Result{
		RunID:  "run-1",
		Source: "a.pdf",
		Classification: &classify.DocumentClassification{
			PageCount: 1, Type: classify.TypeText, TextPages: []int{0}, ImagePages: []int{},
		},
		Pages: []pipeline.PageRecord{
			{Page: 0, Text: "x", Confidence: 1, Paragraphs: []string{"x"}, Method: pipeline.MethodExtract},
		},
	}
	require.NoError(t, Validate(Result, res))

	res.Pages[0].Method = "guess"
	assert.Error(t, Validate(Result, res))
}
