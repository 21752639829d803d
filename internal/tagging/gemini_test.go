package tagging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	categories := Categories()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: `{"category": "Healthcare"}`, want: CategoryHealthcare},
		{name: "fenced", raw: "```json\n{\"category\": \"Finance\"}\n```", want: CategoryFinance},
		{name: "chatter around object", raw: "Sure! {\"category\": \"Education\"} Hope that helps.", want: CategoryEducation},
		{name: "case insensitive", raw: `{"category": "bills & utilities"}`, want: CategoryBills},
		{name: "no fit", raw: `{"category": ""}`, want: ""},
		{name: "unknown category", raw: `{"category": "Pets"}`, wantErr: true},
		{name: "not json", raw: "Healthcare", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.raw, categories)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildClassifyPrompt(t *testing.T) {
	prompt := buildClassifyPrompt("acme gym", []string{"Healthcare", "Entertainment"})

	assert.Contains(t, prompt, "Merchant: acme gym")
	assert.Contains(t, prompt, "- Healthcare\n- Entertainment\n")
	assert.Contains(t, prompt, `{"category": "<category>"}`)
}
