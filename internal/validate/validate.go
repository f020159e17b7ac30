package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return strings.ToLower(s), reEmail.MatchString(s)
}

// Password enforces a length window; bcrypt ignores bytes past 72.
func Password(s string) bool {
	l := len(s)
	return l >= 6 && l <= 72
}

// MaxNameLen is the longest accepted name, in runes.
const MaxNameLen = 100

// Name validates a displayable label with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > MaxNameLen {
		return "", false
	}
	return s, true
}

// ID validates a store identifier (canonical UUID text).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// Price parses an optional, finite price bound from a query value.
// An empty string yields (nil, true).
func Price(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

// MaxTermLen is the longest search term accepted, in runes.
const MaxTermLen = 100

// Term trims a free-text search term. Terms longer than MaxTermLen are
// rejected rather than shortened.
func Term(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxTermLen {
		return "", false
	}
	return s, true
}
