package perms

import (
	"unicode"
)

// Letters maps permission letters to permissions.
//
// Letters are matched case-insensitively, so the table should contain
// only one case of every letter.
type Letters map[rune]Permission

var (
	// BlobLetters contains letters accepted for blob permissions.
	BlobLetters = Letters{
		'r': Read,
		'w': Write,
		'd': Delete,
	}
	// ContainerLetters contains letters accepted for container permissions.
	ContainerLetters = Letters{
		'r': Read,
		'w': Write,
		'd': Delete,
		'l': List,
	}
	// QueueLetters contains letters accepted for queue permissions.
	QueueLetters = Letters{
		'r': Read,
		'a': Add,
		'u': Update,
		'p': Process,
	}
	// TableLetters contains letters accepted for table permissions.
	TableLetters = Letters{
		'r': Read,
		'a': Add,
		'u': Update,
		'd': Delete,
	}
)

// Lookup returns permission for the letter ignoring its case.
func (l Letters) Lookup(letter rune) (Permission, bool) {
	if p, ok := l[letter]; ok {
		return p, true
	}
	if p, ok := l[unicode.ToLower(letter)]; ok {
		return p, true
	}
	p, ok := l[unicode.ToUpper(letter)]
	return p, ok
}

// Supports returns true when permission has letter in table.
func (l Letters) Supports(permission Permission) bool {
	for _, p := range l {
		if p == permission {
			return true
		}
	}
	return false
}

// Legal returns all letters of the table in canonical permission order.
func (l Letters) Legal() string {
	set := PermissionSet{}
	for _, p := range l {
		set.Add(p)
	}
	return set.Format(l)
}

func (l Letters) index() map[Permission]rune {
	index := make(map[Permission]rune, len(l))
	for letter, p := range l {
		letter = unicode.ToLower(letter)
		if prev, ok := index[p]; !ok || letter < prev {
			index[p] = letter
		}
	}
	return index
}
