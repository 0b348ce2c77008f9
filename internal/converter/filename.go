package converter

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const (
	defaultBaseName = "source"
	// maxNameBytes leaves room under the usual 255-byte limit for the
	// output extension soffice swaps in.
	maxNameBytes = 200
	maxExtBytes  = 16
)

// SourceFileName derives the name the document is written under before
// conversion. Only the base name of the upload is kept. When it has no
// extension one is inferred from the content, since soffice picks its import
// filter from the extension.
func SourceFileName(original string, document []byte) string {
	name := strings.ReplaceAll(original, `\`, "/")
	name = filepath.Base(filepath.FromSlash(name))
	name = strings.TrimSpace(name)
	if name == "." || name == "/" || name == ".." {
		name = ""
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name)

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = defaultBaseName
	}
	if len(ext) > maxExtBytes {
		ext = ""
	}
	if ext == "" || ext == "." {
		ext = DetectExtension(document)
	}
	return truncateUTF8(base, maxNameBytes-len(ext)) + ext
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// DetectExtension returns the extension (with dot) matching the document's
// content, or "" when nothing specific is recognised.
func DetectExtension(document []byte) string {
	if len(document) == 0 {
		return ""
	}
	return mimetype.Detect(document).Extension()
}
