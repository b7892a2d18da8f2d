package filestore

import (
	"path"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// defaultBase replaces a name that sanitizes to nothing.
const defaultBase = "document"

// SanitizeFilename reduces a user-supplied filename to a safe ASCII name:
// directories are dropped, accents are folded, whitespace becomes "_", and only
// letters, digits, "_", "-" and "." survive. The extension is lower-cased.
//
//	"C:\\Users\\me\\Rapport Été.PDF" -> "Rapport_Ete.pdf"
//	"../../etc/passwd"               -> "passwd"
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "/" || name == "." {
		name = ""
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	base = strings.Trim(cleanPart(base), "._")
	ext = strings.ToLower(cleanPart(strings.TrimPrefix(ext, ".")))
	ext = strings.Trim(ext, "._")

	if base == "" {
		base = defaultBase
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// cleanPart folds s to ASCII and keeps only safe characters.
func cleanPart(s string) string {
	s = strings.Join(strings.Fields(s), "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFKD.String(s) {
		switch {
		case r > unicode.MaxASCII:
			// Combining marks left by NFKD and other non-ASCII runes.
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitName splits a stored name into base and extension (dot included, lower case).
func SplitName(name string) (base, ext string) {
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), strings.ToLower(ext)
}

// candidateName returns the n-th collision candidate: report.pdf, report_1.pdf, report_2.pdf, ...
func candidateName(base, ext string, n int) string {
	if n == 0 {
		return base + ext
	}
	return base + "_" + strconv.Itoa(n) + ext
}

// validStoredName rejects names that could escape the store.
func validStoredName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}
