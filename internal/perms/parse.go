package perms

import (
	"errors"
	"fmt"
)

// ErrInvalidCharacter is matched by every error returned from Parse.
var ErrInvalidCharacter = errors.New("invalid permission character")

// InvalidCharacterError reports letter that is missing in letter table.
type InvalidCharacterError struct {
	// Spec contains the whole permission string.
	Spec string
	// Char contains invalid character.
	Char rune
	// Position contains 1-based position of character in Spec.
	Position int
	// Legal contains letters that are accepted.
	Legal string
}

func (e *InvalidCharacterError) Error() string {
	if e.Legal == "" {
		return fmt.Sprintf(
			"invalid permission character %q at position %d in %q",
			e.Char, e.Position, e.Spec,
		)
	}
	return fmt.Sprintf(
		"invalid permission character %q at position %d in %q (legal letters: %q)",
		e.Char, e.Position, e.Spec, e.Legal,
	)
}

func (e *InvalidCharacterError) Is(target error) bool {
	return target == ErrInvalidCharacter
}

// Parse converts permission string like "rwd" into permission set.
//
// Letters are matched case-insensitively, may repeat and may appear in
// any order. Empty string results in empty set.
func Parse(spec string, letters Letters) (PermissionSet, error) {
	set := PermissionSet{}
	position := 0
	for _, c := range spec {
		position++
		p, ok := letters.Lookup(c)
		if !ok {
			return nil, &InvalidCharacterError{
				Spec:     spec,
				Char:     c,
				Position: position,
				Legal:    letters.Legal(),
			}
		}
		set.Add(p)
	}
	return set, nil
}

// MustParse is like Parse but panics on error.
func MustParse(spec string, letters Letters) PermissionSet {
	set, err := Parse(spec, letters)
	if err != nil {
		panic(err)
	}
	return set
}
