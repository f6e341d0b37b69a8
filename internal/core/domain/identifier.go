package domain

import "strings"

// KRAID is a canonical key result area identifier. It is produced only by
// NormalizeKRA so that every comparison in the engine happens on canonical
// form, never on raw report text.
type KRAID string

// InitiativeID is a canonical indicator identifier, scoped within one KRA.
// Produced only by NormalizeInitiative.
type InitiativeID string

func (id KRAID) String() string        { return string(id) }
func (id InitiativeID) String() string { return string(id) }

// NormalizeKRA canonicalizes loosely-formatted KRA identifiers.
// "KRA3", "KRA 3" and "kra  03" all resolve to "KRA 3". The function is
// total: input it cannot parse comes back trimmed and uppercased instead
// of failing, because it sits on the hot lookup path.
func NormalizeKRA(raw string) KRAID {
	return KRAID(canonicalize(raw))
}

// NormalizeInitiative canonicalizes indicator/initiative identifiers with
// the same rules as NormalizeKRA.
func NormalizeInitiative(raw string) InitiativeID {
	return InitiativeID(canonicalize(raw))
}

// SequenceNumber extracts the trailing integer of a canonical identifier,
// used to recover indicators recorded under inconsistent numbering schemes.
// The second return is false when the identifier carries no trailing number.
func (id InitiativeID) SequenceNumber() (int, bool) {
	return trailingNumber(string(id))
}

func (id KRAID) SequenceNumber() (int, bool) {
	return trailingNumber(string(id))
}

func canonicalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return s
	}
	s = collapseSpaces(s)

	prefix, number, ok := splitTrailingNumber(s)
	if !ok {
		return s
	}
	if prefix == "" {
		return number
	}
	return prefix + " " + number
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == ' ' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// splitTrailingNumber separates "KRA 03" into ("KRA", "3"). Dotted sequence
// numbers like "1.2" keep their dots but lose leading zeros per segment.
func splitTrailingNumber(s string) (prefix, number string, ok bool) {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if (c >= '0' && c <= '9') || c == '.' {
			i--
			continue
		}
		break
	}
	if i == len(s) {
		return "", "", false
	}
	number = stripLeadingZeros(s[i:])
	prefix = strings.TrimRight(s[:i], " .")
	return prefix, number, number != ""
}

func stripLeadingZeros(num string) string {
	parts := strings.Split(strings.Trim(num, "."), ".")
	for i, p := range parts {
		trimmed := strings.TrimLeft(p, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		parts[i] = trimmed
	}
	return strings.Join(parts, ".")
}

func trailingNumber(s string) (int, bool) {
	_, number, ok := splitTrailingNumber(s)
	if !ok {
		return 0, false
	}
	// For dotted sequences the last segment is the indicator's number.
	if idx := strings.LastIndex(number, "."); idx >= 0 {
		number = number[idx+1:]
	}
	n := 0
	for _, c := range number {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
