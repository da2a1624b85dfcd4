package http

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"hekumbi_chat/internal/entities"
)

const (
	MaxIDLength     = 64
	MaxSearchLength = 100
	MaxPageSize     = 100
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidID checks that a path or query id is safe to pass to the store.
func ValidID(s string) bool {
	return s != "" && len(s) <= MaxIDLength && idPattern.MatchString(s)
}

// ValidChannel checks a client supplied push channel name.
func ValidChannel(s string) bool {
	return s == "" || (len(s) <= 2*MaxIDLength && idPattern.MatchString(s))
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// TruncateString truncates s to at most maxLen bytes without splitting a rune.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen]
}

// listFilter reads status, priority, search, page and limit query parameters.
func listFilter(c *gin.Context) entities.ListFilter {
	f := entities.ListFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Search:   TruncateString(SanitizeString(c.Query("search")), MaxSearchLength),
	}
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		f.Page = p
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		if l > MaxPageSize {
			l = MaxPageSize
		}
		f.Limit = l
	}
	return f
}
