package domain

import (
	"errors"
	"fmt"
	"math"
)

var ErrIndexOutOfRange = errors.New("insertion index out of range")

// Analysis is the structural summary of a played sequence.
type Analysis struct {
	IsValid    bool       `json:"is_valid"`
	IsComplete bool       `json:"is_complete"`
	Suggested  []Category `json:"suggested_categories"`
}

// Validator answers insertion queries against one played sequence. It precomputes
// neighbour, paren-depth and header tables so each (card, index) check is O(1).
//
// Slot i is the gap before seq[i]; slot len(seq) is the append position.
type Validator struct {
	seq []Card

	prevEff  []int  // nearest non-marker card before slot i, -1 if none
	nextEff  []int  // nearest non-marker card at or after slot i, -1 if none
	depth    []int  // open parens at slot i
	sufMin   []int  // min depth over slots i..n
	commaMin []int  // min depth at commas at or after slot i
	header   []bool // a block header is open at slot i
	term     []bool // the open header has enough content for a colon at slot i
	closed   []bool // a colon sits at or after slot i
	opReady  []bool // a header needing an operand, opened at slot i, stays closable
	forReady []bool // same for a for header, which also needs its in clause
	valid    bool
}

// NewValidator indexes seq. The slice is not copied and must not change while the
// validator is in use.
func NewValidator(seq []Card) *Validator {
	n := len(seq)
	v := &Validator{
		seq:      seq,
		prevEff:  make([]int, n+1),
		nextEff:  make([]int, n+1),
		depth:    make([]int, n+1),
		sufMin:   make([]int, n+1),
		commaMin: make([]int, n+1),
		header:   make([]bool, n+1),
		term:     make([]bool, n+1),
		closed:   make([]bool, n+1),
		opReady:  make([]bool, n+1),
		forReady: make([]bool, n+1),
		valid:    true,
	}

	last := -1
	var open, needIn, needOperand bool
	prev, prevWild := CategoryStart, false
	for k, c := range seq {
		v.prevEff[k] = last
		d := v.depth[k]

		if !c.IsMarker() {
			last = k
			if !c.IsWild() && !prevWild && !c.Follows.Has(prev) {
				v.valid = false
			}
			prev, prevWild = c.Category, c.IsWild()
		}

		switch {
		case c.IsMarker():
		case c.IsWild():
			needIn, needOperand = false, false
		case c.Category == CategorySyntaxOpen:
			d++
		case c.Category == CategorySyntaxClose:
			d--
			if d < 0 {
				v.valid = false
			}
		case c.Category == CategorySyntaxComma:
			if d < 1 {
				v.valid = false
			}
		case c.Category == CategorySyntaxColon:
			if d != 0 || !open || needIn || needOperand {
				v.valid = false
			}
			open = false
		case c.OpensBlock:
			open = true
			needIn = c.ID == "for"
			needOperand = !needIn && !bareHeader(c)
		}
		if open && !c.IsMarker() && !c.IsWild() && !c.OpensBlock && c.Category != CategorySyntaxColon {
			if needIn {
				if c.ID == "in" {
					needIn, needOperand = false, true
				}
			} else {
				needOperand = false
			}
		}
		v.depth[k+1] = d
		v.header[k+1] = open
		v.term[k+1] = open && !needIn && !needOperand
	}
	v.prevEff[n] = last

	next := -1
	v.nextEff[n] = -1
	v.sufMin[n] = v.depth[n]
	v.commaMin[n] = math.MaxInt
	v.opReady[n], v.forReady[n] = true, true
	for k := n - 1; k >= 0; k-- {
		c := seq[k]
		if !c.IsMarker() {
			next = k
		}
		v.nextEff[k] = next

		// A header inserted at k runs up to the next colon or the next header.
		switch {
		case c.IsMarker():
			v.opReady[k], v.forReady[k] = v.opReady[k+1], v.forReady[k+1]
		case c.IsWild():
			v.opReady[k], v.forReady[k] = true, true
		case c.Category == CategorySyntaxColon:
			v.opReady[k], v.forReady[k] = false, false
		case c.OpensBlock:
			v.opReady[k], v.forReady[k] = true, true
		case c.ID == "in":
			v.opReady[k], v.forReady[k] = true, v.opReady[k+1]
		default:
			v.opReady[k], v.forReady[k] = true, v.forReady[k+1]
		}

		v.sufMin[k] = min(v.depth[k], v.sufMin[k+1])
		v.commaMin[k] = v.commaMin[k+1]
		v.closed[k] = v.closed[k+1]
		if c.IsWild() || c.IsMarker() {
			continue
		}
		switch c.Category {
		case CategorySyntaxComma:
			v.commaMin[k] = min(v.commaMin[k], v.depth[k])
		case CategorySyntaxColon:
			v.closed[k] = true
		}
	}
	return v
}

// Len is the length of the indexed sequence.
func (v *Validator) Len() int {
	return len(v.seq)
}

// CanInsert reports whether card c may be placed at slot i.
func (v *Validator) CanInsert(c Card, i int) bool {
	if i < 0 || i > len(v.seq) {
		return false
	}
	if c.IsMarker() {
		return i == len(v.seq)
	}
	if c.IsWild() {
		return true
	}
	if !v.fitsNeighbours(c, i) {
		return false
	}

	switch c.Category {
	case CategorySyntaxOpen:
		// a new paren would swallow every later colon
		return !v.closed[i]
	case CategorySyntaxClose:
		return v.depth[i] >= 1 && v.sufMin[i] >= 1 && v.commaMin[i] >= 2
	case CategorySyntaxComma:
		return v.depth[i] >= 1
	case CategorySyntaxColon:
		return v.depth[i] == 0 && v.term[i] && !v.closed[i]
	}
	if c.OpensBlock {
		return v.headerReady(c, i)
	}
	return true
}

// headerReady reports whether header c opened at slot i still has the content its
// closing colon needs, when one follows.
func (v *Validator) headerReady(c Card, i int) bool {
	switch {
	case bareHeader(c):
		return true
	case c.ID == "for":
		return v.forReady[i]
	}
	return v.opReady[i]
}

// bareHeader reports headers that take no condition before their colon.
func bareHeader(c Card) bool {
	switch c.ID {
	case "else", "try", "except":
		return true
	}
	return false
}

func (v *Validator) fitsNeighbours(c Card, i int) bool {
	if p := v.prevEff[i]; p < 0 {
		if !c.Follows.Has(CategoryStart) {
			return false
		}
	} else if prev := v.seq[p]; !prev.IsWild() && !c.Follows.Has(prev.Category) {
		return false
	}

	if nx := v.nextEff[i]; nx >= 0 {
		next := v.seq[nx]
		if !next.IsWild() && !next.Follows.Has(c.Category) {
			return false
		}
	}
	return true
}

// LegalAt returns the distinct cards from hand that may go into slot i, in catalog
// order.
func (v *Validator) LegalAt(hand []Card, i int) []Card {
	var out []Card
	for _, c := range distinct(hand) {
		if v.CanInsert(c, i) {
			out = append(out, c)
		}
	}
	return out
}

// LegalInsertions maps every slot with at least one playable card to those cards.
func (v *Validator) LegalInsertions(hand []Card) map[int][]Card {
	cards := distinct(hand)
	out := make(map[int][]Card)
	for i := 0; i <= len(v.seq); i++ {
		for _, c := range cards {
			if v.CanInsert(c, i) {
				out[i] = append(out[i], c)
			}
		}
	}
	return out
}

// OptionCount counts the legal (card, slot) pairs for the given distinct cards.
func (v *Validator) OptionCount(cards []Card) int {
	count := 0
	for i := 0; i <= len(v.seq); i++ {
		for _, c := range cards {
			if v.CanInsert(c, i) {
				count++
			}
		}
	}
	return count
}

// Analysis reports validity, completeness and the categories playable at the append
// position. SPECIAL is never suggested since it is always playable there.
func (v *Validator) Analysis() Analysis {
	a := Analysis{IsValid: v.valid}
	a.IsComplete = v.valid && v.complete()

	var suggested CategorySet
	n := len(v.seq)
	for _, c := range catalog {
		if c.Category == CategorySpecial || suggested.Has(c.Category) {
			continue
		}
		if v.CanInsert(c, n) {
			suggested |= setOf(c.Category)
		}
	}
	a.Suggested = suggested.Categories()
	return a
}

func (v *Validator) complete() bool {
	n := len(v.seq)
	last := v.prevEff[n]
	if last < 0 || v.depth[n] != 0 || v.header[n] {
		return false
	}
	c := v.seq[last]
	if c.IsWild() || c.ID == "return" {
		return true
	}
	switch c.Category {
	case CategoryValue, CategoryVariable, CategorySyntaxClose, CategorySyntaxColon:
		return true
	}
	return false
}

// Analyze is a convenience wrapper around NewValidator(seq).Analysis().
func Analyze(seq []Card) Analysis {
	return NewValidator(seq).Analysis()
}

// LegalInsertions is the stateless query: which cards of hand fit where in seq.
func LegalInsertions(hand, seq []Card) map[int][]Card {
	return NewValidator(seq).LegalInsertions(hand)
}

// Insert returns a new sequence with c at slot i. It does not validate grammar.
func Insert(seq []Card, c Card, i int) ([]Card, error) {
	if i < 0 || i > len(seq) {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, i, len(seq))
	}
	out := make([]Card, 0, len(seq)+1)
	out = append(out, seq[:i]...)
	out = append(out, c)
	out = append(out, seq[i:]...)
	return out, nil
}

// distinct drops duplicate identities and sorts by catalog order.
func distinct(hand []Card) []Card {
	seen := make(map[string]bool, len(hand))
	out := make([]Card, 0, len(hand))
	for _, c := range hand {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	SortHand(out)
	return out
}
