package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"icon", func(w *Writer) { w.Status("🔍", "Searching") }, "🔍 Searching\n"},
		{"no icon", func(w *Writer) { w.Status("", "detail") }, "   detail\n"},
		{"success", func(w *Writer) { w.Successf("Indexed %d entries", 3) }, "✅ Indexed 3 entries\n"},
		{"warning", func(w *Writer) { w.Warningf("%d skipped", 1) }, "⚠️  1 skipped\n"},
		{"error", func(w *Writer) { w.Errorf("failed") }, "❌ failed\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Field_AlignsValues(t *testing.T) {
	// Given: fields with labels of different length
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing them with a common width
	w.Field("id", 6, "e1")
	w.Field("rating", 6, 0.5)

	// Then: values start in the same column
	assert.Equal(t, "   id:     e1\n   rating: 0.5\n", buf.String())
}

func TestList(t *testing.T) {
	assert.Equal(t, "-", List(nil))
	assert.Equal(t, "a, b", List([]string{"a", "b"}))
}

func TestJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, JSON(buf, map[string]int{"n": 1}))
	assert.Equal(t, "{\n  \"n\": 1\n}\n", buf.String())
}
