package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocateArraySpan(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "bare array",
			raw:    `[{"date":"2024-01-01"}]`,
			want:   `[{"date":"2024-01-01"}]`,
			wantOK: true,
		},
		{
			name:   "leading prose",
			raw:    "Here are the events I found:\n[{\"date\":\"2024-01-01\",\"summary\":\"x\"}]",
			want:   `[{"date":"2024-01-01","summary":"x"}]`,
			wantOK: true,
		},
		{
			name:   "trailing commentary with brackets",
			raw:    `[{"summary":"a"}] Let me know if you need more [details].`,
			want:   `[{"summary":"a"}]`,
			wantOK: true,
		},
		{
			name:   "citation before payload",
			raw:    `Per the statute [1], here are the events: [{"summary":"a"}]`,
			want:   `[{"summary":"a"}]`,
			wantOK: true,
		},
		{
			name:   "empty array after citation",
			raw:    `As in [2, 3], nothing dated: []`,
			want:   `[]`,
			wantOK: true,
		},
		{
			name:   "only scalar arrays falls back to first valid",
			raw:    `see [this] then [1, 2]`,
			want:   `[1, 2]`,
			wantOK: true,
		},
		{
			name:   "code fence",
			raw:    "```json\n[\n  {\"date\": \"2024-01-01\"}\n]\n```",
			want:   "[\n  {\"date\": \"2024-01-01\"}\n]",
			wantOK: true,
		},
		{
			name:   "bracketed prose before payload",
			raw:    `As noted in [Exhibit A], the events are: [{"summary":"a"}]`,
			want:   `[{"summary":"a"}]`,
			wantOK: true,
		},
		{
			name:   "brackets inside strings",
			raw:    `[{"summary":"filed motion ] to dismiss [sic]","context":"\"[quoted]\""}]`,
			want:   `[{"summary":"filed motion ] to dismiss [sic]","context":"\"[quoted]\""}]`,
			wantOK: true,
		},
		{
			name:   "nested arrays",
			raw:    `result: [{"participants":["A","B"]}] done`,
			want:   `[{"participants":["A","B"]}]`,
			wantOK: true,
		},
		{
			name:   "invalid json falls back to first balanced span",
			raw:    `see [this] and [that]`,
			want:   `[this]`,
			wantOK: true,
		},
		{
			name:   "no span",
			raw:    `I could not find any dates in the document.`,
			wantOK: false,
		},
		{
			name:   "unbalanced",
			raw:    `[{"date":"2024-01-01"`,
			wantOK: false,
		},
		{
			name:   "object only",
			raw:    `{"date":"2024-01-01","summary":"x"}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LocateArraySpan(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
