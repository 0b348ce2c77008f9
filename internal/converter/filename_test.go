package converter

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSourceFileName(t *testing.T) {
	pdfish := []byte("hello world")
	tests := []struct {
		name     string
		original string
		doc      []byte
		want     string
	}{
		{"keeps plain name", "report.docx", pdfish, "report.docx"},
		{"strips unix dirs", "../../etc/report.odt", pdfish, "report.odt"},
		{"strips windows dirs", `C:\Users\me\deck.pptx`, pdfish, "deck.pptx"},
		{"empty becomes source", "", pdfish, "source.txt"},
		{"extension only", ".docx", pdfish, "source.docx"},
		{"infers text extension", "notes", pdfish, "notes.txt"},
		{"replaces reserved chars", `a?b*.txt`, pdfish, "a_b_.txt"},
		{"unknown binary has no extension", "blob", []byte{0x00, 0x01, 0x02, 0xff}, "blob"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SourceFileName(tc.original, tc.doc))
		})
	}
}

func TestDetectExtension(t *testing.T) {
	assert.Equal(t, "", DetectExtension(nil))
	assert.Equal(t, ".pdf", DetectExtension([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")))
	assert.Equal(t, ".txt", DetectExtension([]byte("plain text body")))
}

func TestSourceFileName_TruncatesLongNames(t *testing.T) {
	doc := []byte("hello world")

	got := SourceFileName(strings.Repeat("a", 300)+".docx", doc)
	assert.LessOrEqual(t, len(got), maxNameBytes)
	assert.Equal(t, ".docx", filepath.Ext(got))
	assert.True(t, strings.HasPrefix(got, "aaaa"))

	got = SourceFileName(strings.Repeat("é", 200)+".odt", doc)
	assert.LessOrEqual(t, len(got), maxNameBytes)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, ".odt", filepath.Ext(got))

	got = SourceFileName("memo."+strings.Repeat("x", 300), doc)
	assert.LessOrEqual(t, len(got), maxNameBytes)
	assert.Equal(t, ".txt", filepath.Ext(got))
}
