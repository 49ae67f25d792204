// internal/point/id.go
package point

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prefix is the IO kind of a point.
type Prefix string

const (
	DI Prefix = "DI"
	DO Prefix = "DO"
	AI Prefix = "AI"
	AO Prefix = "AO"
)

// ErrMalformed is returned for ids that are not <PREFIX><group>.<index>.
var ErrMalformed = errors.New("point: malformed id")

// ID addresses one IO point on a board.
// Comparable; used directly as map key.
type ID struct {
	Prefix Prefix
	Group  int // 1-based
	Index  int // 1-based
}

// New builds an ID without going through text.
func New(p Prefix, group, index int) ID {
	return ID{Prefix: p, Group: group, Index: index}
}

func (id ID) String() string {
	return fmt.Sprintf("%s%d.%d", id.Prefix, id.Group, id.Index)
}

// Digital reports whether the point is a DI or DO.
func (id ID) Digital() bool {
	return id.Prefix == DI || id.Prefix == DO
}

// Parse is strict: known prefix, 1-based decimal group and index,
// no leading zeros, no sign, no whitespace.
func Parse(s string) (ID, error) {
	if len(s) < 2 {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	p := Prefix(s[:2])
	switch p {
	case DI, DO, AI, AO:
	default:
		return ID{}, fmt.Errorf("%w: %q: unknown prefix", ErrMalformed, s)
	}

	groupText, indexText, found := strings.Cut(s[2:], ".")
	if !found {
		return ID{}, fmt.Errorf("%w: %q: missing '.'", ErrMalformed, s)
	}

	group, err := parsePositive(groupText)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q: group: %v", ErrMalformed, s, err)
	}
	index, err := parsePositive(indexText)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q: index: %v", ErrMalformed, s, err)
	}

	return ID{Prefix: p, Group: group, Index: index}, nil
}

// MustParse is for tests and static tables.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func parsePositive(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("non-digit %q", s[i])
		}
	}
	if s[0] == '0' {
		return 0, errors.New("zero or leading zero")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}
