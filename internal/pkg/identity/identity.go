// Package identity normalizes email identities and derives the academic
// attributes encoded in a university email local part.
package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alumni-api/internal/domain"
)

// ExpectedFormat describes the accepted local part for error messages.
const ExpectedFormat = "<campus digit><college code><entry year yy><branch code><roll no>, e.g. 1si23is117@college.edu"

// programYears is the length of an undergraduate program.
const programYears = 4

var localPartPattern = regexp.MustCompile(`^([0-9])([a-z]{2})([0-9]{2})([a-z]{2})([0-9]{3})$`)

// Branches maps branch codes to the department name stored on profiles.
var Branches = map[string]string{
	"AI": "Artificial Intelligence and Machine Learning",
	"BT": "Biotechnology",
	"CH": "Chemical Engineering",
	"CI": "Computer Science and Design",
	"CS": "Computer Science",
	"CV": "Civil Engineering",
	"EC": "Electronics and Communication",
	"EE": "Electrical and Electronics",
	"EI": "Electronics and Instrumentation",
	"IM": "Industrial Engineering and Management",
	"IS": "Information Science",
	"ME": "Mechanical Engineering",
	"TE": "Telecommunication",
}

// NormalizeEmail trims and lowercases an email so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LocalPart returns the part of email before the last '@'.
func LocalPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// Parse derives identity attributes from the local part of email.
func Parse(email string) (*domain.IdentityAttributes, error) {
	local := LocalPart(NormalizeEmail(email))
	m := localPartPattern.FindStringSubmatch(local)
	if m == nil {
		return nil, fmt.Errorf("%q does not match %s: %w", local, ExpectedFormat, domain.ErrInvalidIdentityFormat)
	}
	code := strings.ToUpper(m[4])
	unit, ok := Branches[code]
	if !ok {
		return nil, fmt.Errorf("unknown branch code %q, expected %s: %w", code, ExpectedFormat, domain.ErrInvalidIdentityFormat)
	}
	yy, _ := strconv.Atoi(m[3])
	start := 2000 + yy
	return &domain.IdentityAttributes{
		USN:         strings.ToUpper(local),
		Unit:        unit,
		UnitCode:    code,
		CohortStart: start,
		CohortEnd:   start + programYears,
	}, nil
}

// BranchCode returns the code for a department name or code, case-insensitively.
func BranchCode(branch string) (string, bool) {
	b := strings.TrimSpace(branch)
	if _, ok := Branches[strings.ToUpper(b)]; ok {
		return strings.ToUpper(b), true
	}
	for code, name := range Branches {
		if strings.EqualFold(name, b) {
			return code, true
		}
	}
	return "", false
}
