package server

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

// sanitizeBase normalizes a mount path to "" or "/x" with no trailing slash.
func sanitizeBase(bp string) string {
	bp = strings.TrimFunc(bp, func(r rune) bool { return r == '/' || unicode.IsSpace(r) })
	if bp == "" {
		return ""
	}
	return "/" + bp
}

// isSafeName checks a site name taken from the URL before it is looked up.
// Allowed characters: A-Z a-z 0-9 . _ - and no "..".
func isSafeName(s string) bool {
	if s == "" || len(s) > 100 || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

// isSafeAbsPath reports whether p is empty or an absolute, already clean path.
// Trailing separators are tolerated.
func isSafeAbsPath(p string) bool {
	if p == "" {
		return true
	}
	if !filepath.IsAbs(p) {
		return false
	}
	sep := string(filepath.Separator)
	return strings.TrimRight(filepath.Clean(p), sep) == strings.TrimRight(p, sep)
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}
