package device

import "strings"

// generateID turns a display or device name into an id: every run of
// characters other than ASCII letters and digits becomes one dash, the
// result is lower-cased and leading or trailing dashes are dropped.
//
//	generateID("Living Room (TV)") == "living-room-tv"
func generateID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingDash := false
	for _, r := range name {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// GenerateID is generateID for other packages creating ids from names.
func GenerateID(name string) string {
	return generateID(name)
}
