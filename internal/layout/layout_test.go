package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/internal/model"
)

// mono measures every rune as 10 units wide.
var mono = MeasureFunc(func(s string) float64 { return float64(len([]rune(s)) * 10) })

func fieldRules(l Layout) []Rule {
	var out []Rule
	for _, r := range l.Rules {
		if r.Kind == RuleField {
			out = append(out, r)
		}
	}
	return out
}

func TestGenerateNotesAndSignature(t *testing.T) {
	fields := []model.TemplateField{
		{FieldLabel: "Notes", FieldType: model.FieldTypeTextarea, IsRequired: true},
		{FieldLabel: "Signature", FieldType: model.FieldTypeText},
	}
	l := Generate(fields, A4, mono)

	require.False(t, l.Fallback)
	require.Len(t, l.Fields, 2)

	notes, sig := l.Fields[0], l.Fields[1]
	assert.Equal(t, "Notes *", notes.Label)
	assert.Equal(t, "Signature", sig.Label)
	assert.Equal(t, float64(5*LineHeight), notes.Height)
	assert.Equal(t, float64(LineHeight), sig.Height)
	assert.Equal(t, 5, notes.Lines)
	assert.Equal(t, 1, sig.Lines)
	assert.Less(t, notes.Top, sig.Top)
	assert.Equal(t, float64(TopPadding), notes.Top)
	assert.Equal(t, notes.Top+notes.Height+FieldSpacing, sig.Top)

	assert.Len(t, fieldRules(l), 6)
	require.Len(t, l.Labels, 2)
	assert.Equal(t, "Notes *", l.Labels[0].Text)
	assert.Equal(t, "Signature", l.Labels[1].Text)
}

func TestGenerateDeterministic(t *testing.T) {
	fields := []model.TemplateField{
		{FieldLabel: "Chief complaint and history of present illness", FieldType: model.FieldTypeTextarea, IsRequired: true},
		{FieldLabel: "Temperature", FieldType: model.FieldTypeNumber},
		{FieldLabel: "Follow-up date", FieldType: model.FieldTypeDate},
	}
	a := Generate(fields, A4, nil)
	b := Generate(fields, A4, nil)
	assert.Equal(t, a, b)
}

func TestGenerateUnknownTypeIsSingleLine(t *testing.T) {
	l := Generate([]model.TemplateField{{FieldLabel: "Other", FieldType: "signature-pad"}}, A4, mono)
	require.Len(t, l.Fields, 1)
	assert.Equal(t, 1, l.Fields[0].Lines)
	assert.Equal(t, float64(LineHeight), l.Fields[0].Height)
}

func TestGenerateFallback(t *testing.T) {
	l := Generate(nil, A4, mono)
	require.True(t, l.Fallback)
	assert.Empty(t, l.Fields)
	assert.Empty(t, l.Labels)

	var grid, margin int
	for _, r := range l.Rules {
		switch r.Kind {
		case RuleGrid:
			grid++
			assert.Equal(t, 0.0, r.X1)
			assert.Equal(t, A4.Width, r.X2)
		case RuleMargin:
			margin++
			assert.Equal(t, float64(MarginX), r.X1)
		default:
			t.Fatalf("unexpected rule kind %s", r.Kind)
		}
	}
	assert.Equal(t, 1, margin)
	assert.Equal(t, (PageHeight-1)/LineHeight, grid)
	assert.NotEqual(t, StyleOf(RuleField), StyleOf(RuleGrid))
	assert.NotEqual(t, StyleOf(RuleField).Color, StyleOf(RuleMargin).Color)
}

func TestGenerateZeroSizeUsesA4(t *testing.T) {
	l := Generate(nil, Size{}, mono)
	assert.Equal(t, A4, l.Size)
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width float64
		want  []string
	}{
		{"fits", "ab cd", 100, []string{"ab cd"}},
		{"exact width stays", "ab cd", 50, []string{"ab cd"}},
		{"overflow flushes", "ab cd ef", 50, []string{"ab cd", "ef"}},
		{"long word alone", "abcdefghij xy", 50, []string{"abcdefghij", "xy"}},
		{"empty", "  ", 50, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, tt.width, mono))
		})
	}
}

func TestDefaultMeasurer(t *testing.T) {
	m := DefaultMeasurer()
	assert.Greater(t, m.Measure("Signature"), m.Measure("Sig"))
	assert.Equal(t, 0.0, m.Measure(""))
}
