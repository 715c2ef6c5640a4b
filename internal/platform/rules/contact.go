package rules

import (
	"net/mail"
	"regexp"
	"strings"
)

var phoneRE = regexp.MustCompile(`^[6-9][0-9]{9}$`)

// ValidPhone reports whether s is a ten digit mobile number starting with 6-9.
func ValidPhone(s string) bool {
	return phoneRE.MatchString(s)
}

// ValidEmail accepts a bare address (no display name) with a dotted domain.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

var genders = map[string]bool{"Male": true, "Female": true, "Other": true}

func ValidGender(s string) bool {
	return genders[s]
}

var bloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

func ValidBloodGroup(s string) bool {
	return bloodGroups[s]
}

// BloodGroups lists the accepted blood groups in display order.
func BloodGroups() []string {
	return []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
}
