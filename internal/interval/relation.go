package interval

import (
	"fmt"
	"strings"
)

// Relation is the position of one interval relative to another.
// Values are single bits so they combine into a Mask.
type Relation uint8

const (
	OutsideRight Relation = 1 << iota
	OverlapRight
	Covers
	Equals
	Covered
	OverlapLeft
	OutsideLeft
)

// Mask is a union of relations.
type Mask uint8

const (
	MatchOutside = Mask(OutsideLeft | OutsideRight)
	MatchInside  = Mask(Equals | Covered)
	MatchOverlap = MatchInside | Mask(OverlapLeft|OverlapRight)
	MatchCovers  = MatchOverlap | Mask(Covers)
	MatchAll     = MatchCovers | MatchOutside
)

// DefaultMask selects every relation except the outside ones.
const DefaultMask = MatchCovers

var relationNames = []struct {
	rel  Relation
	name string
}{
	{OutsideLeft, "outside-left"},
	{OverlapLeft, "overlap-left"},
	{Covered, "covered"},
	{Equals, "equals"},
	{Covers, "covers"},
	{OverlapRight, "overlap-right"},
	{OutsideRight, "outside-right"},
}

// Mask returns the single-relation mask.
func (r Relation) Mask() Mask {
	return Mask(r)
}

func (r Relation) String() string {
	for _, rn := range relationNames {
		if rn.rel == r {
			return rn.name
		}
	}
	return fmt.Sprintf("relation(%d)", uint8(r))
}

// Has reports whether the mask includes r.
func (m Mask) Has(r Relation) bool {
	return m&Mask(r) != 0
}

func (m Mask) String() string {
	switch m {
	case MatchOutside:
		return "outside"
	case MatchInside:
		return "inside"
	case MatchOverlap:
		return "overlap"
	case MatchCovers:
		return "covers"
	case MatchAll:
		return "all"
	}
	var parts []string
	for _, rn := range relationNames {
		if m.Has(rn.rel) {
			parts = append(parts, rn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	if len(parts) == 1 {
		if _, ok := namedMasks[parts[0]]; ok {
			return "=" + parts[0]
		}
	}
	return strings.Join(parts, "|")
}

// ParseMask accepts a named mask (outside, inside, overlap, covers, all) or
// relation names joined by "|" or ",". Named masks win over relation names;
// prefix a name with "=" to select the single relation, as in "=covers".
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if m, ok := namedMasks[s]; ok {
		return m, nil
	}
	var m Mask
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.TrimPrefix(strings.TrimSpace(part), "=")
		found := false
		for _, rn := range relationNames {
			if rn.name == part {
				m |= Mask(rn.rel)
				found = true
				break
			}
		}
		if !found {
			return 0, newError("unknown relation %q", part)
		}
	}
	if m == 0 {
		return 0, newError("empty mask %q", s)
	}
	return m, nil
}

var namedMasks = map[string]Mask{
	"":        MatchCovers,
	"outside": MatchOutside,
	"inside":  MatchInside,
	"overlap": MatchOverlap,
	"covers":  MatchCovers,
	"all":     MatchAll,
}
