package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the grammatical role a card plays in the played sequence.
type Category uint8

const (
	// CategoryStart is the virtual boundary before the first card of a sequence.
	CategoryStart Category = iota
	CategoryLoop
	CategoryVariable
	CategoryKeyword
	CategoryFunction
	CategoryValue
	CategoryOperator
	CategorySyntaxOpen
	CategorySyntaxClose
	CategorySyntaxColon
	CategorySyntaxComma
	CategorySpecial
)

var categoryNames = [...]string{
	CategoryStart:       "START",
	CategoryLoop:        "LOOP",
	CategoryVariable:    "VARIABLE",
	CategoryKeyword:     "KEYWORD",
	CategoryFunction:    "FUNCTION",
	CategoryValue:       "VALUE",
	CategoryOperator:    "OPERATOR",
	CategorySyntaxOpen:  "SYNTAX_OPEN",
	CategorySyntaxClose: "SYNTAX_CLOSE",
	CategorySyntaxColon: "SYNTAX_COLON",
	CategorySyntaxComma: "SYNTAX_COMMA",
	CategorySpecial:     "SPECIAL",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// MarshalText encodes the category by name so JSON payloads stay readable.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a category name, case-insensitively.
func (c *Category) UnmarshalText(text []byte) error {
	name := strings.ToUpper(string(text))
	for i, n := range categoryNames {
		if n == name {
			*c = Category(i)
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", text)
}

// CategorySet is a bitset of categories.
type CategorySet uint16

func setOf(cats ...Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s |= 1 << c
	}
	return s
}

// Has reports whether c is in the set.
func (s CategorySet) Has(c Category) bool {
	return s&(1<<c) != 0
}

// Categories lists the members in enum order.
func (s CategorySet) Categories() []Category {
	var out []Category
	for c := CategoryStart; c <= CategorySpecial; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Effect tags a SPECIAL card with the side effect it triggers when played.
type Effect string

const (
	EffectNone     Effect = ""
	EffectWild     Effect = "wild"
	EffectDraw2    Effect = "draw_2"
	EffectDiscard2 Effect = "discard_2"
	EffectSkip     Effect = "skip"
)

// Card is a single token card. Cards are plain values; two instances with the same ID
// are interchangeable.
type Card struct {
	ID       string
	Category Category
	Points   int
	Effect   Effect
	// Count is how many instances a fresh deck holds.
	Count int
	// Follows lists the categories allowed immediately before this card.
	Follows CategorySet
	// OpensBlock marks header starters that a colon may terminate.
	OpensBlock bool
}

// IsWild reports whether the card bypasses category matching.
func (c Card) IsWild() bool {
	return c.Effect == EffectWild
}

// IsMarker reports whether the card is a non-wild SPECIAL card. Markers occupy no
// grammatical role and may only be appended.
func (c Card) IsMarker() bool {
	return c.Category == CategorySpecial && c.Effect != EffectWild
}

var ErrCardNotFound = errors.New("card not found")

var (
	statementStart  = setOf(CategoryStart, CategorySyntaxColon)
	expressionStart = setOf(CategoryKeyword, CategoryOperator, CategorySyntaxOpen, CategorySyntaxComma)
	operandEnd      = setOf(CategoryValue, CategoryVariable, CategorySyntaxClose)
	anyCategory     = CategorySet(1<<(CategorySpecial+1) - 1)
)

func loop(id string, points, count int) Card {
	return Card{ID: id, Category: CategoryLoop, Points: points, Count: count, Follows: statementStart, OpensBlock: true}
}

func variable(id string, count int) Card {
	return Card{ID: id, Category: CategoryVariable, Points: 1, Count: count,
		Follows: statementStart | expressionStart | setOf(CategoryLoop)}
}

func keyword(id string, points, count int, follows CategorySet, opens bool) Card {
	return Card{ID: id, Category: CategoryKeyword, Points: points, Count: count, Follows: follows, OpensBlock: opens}
}

func function(id string, count int, follows CategorySet) Card {
	return Card{ID: id, Category: CategoryFunction, Points: 2, Count: count, Follows: follows}
}

func value(id string, count int) Card {
	return Card{ID: id, Category: CategoryValue, Points: 1, Count: count, Follows: expressionStart}
}

func operator(id string, count int, follows CategorySet) Card {
	return Card{ID: id, Category: CategoryOperator, Points: 1, Count: count, Follows: follows}
}

func syntax(id string, cat Category, count int, follows CategorySet) Card {
	return Card{ID: id, Category: cat, Points: 1, Count: count, Follows: follows}
}

func special(id string, effect Effect, count int) Card {
	return Card{ID: id, Category: CategorySpecial, Effect: effect, Count: count, Follows: anyCategory}
}

// catalog is the full card table in display order. The order is also the tie-break
// order for legal insertion listings.
var catalog = []Card{
	loop("for", 2, 3),
	loop("while", 2, 2),

	variable("x", 4),
	variable("i", 4),
	variable("n", 3),
	variable("item", 3),
	variable("result", 2),

	keyword("in", 2, 4, setOf(CategoryVariable), false),
	keyword("if", 2, 3, statementStart, true),
	keyword("else", 2, 2, setOf(CategorySyntaxColon), true),
	keyword("elif", 2, 2, setOf(CategorySyntaxColon), true),
	keyword("not", 2, 2, expressionStart, false),
	keyword("def", 3, 2, statementStart, true),
	keyword("return", 3, 2, statementStart, false),
	keyword("lambda", 3, 1, expressionStart, false),
	keyword("class", 3, 1, statementStart, true),
	keyword("try", 3, 1, statementStart, true),
	keyword("except", 3, 1, setOf(CategorySyntaxColon), true),

	function("range", 4, expressionStart),
	function("print", 3, statementStart),
	function("len", 3, expressionStart),
	function("input", 2, expressionStart),
	function("int", 2, expressionStart),
	function("str", 2, expressionStart),
	function("list", 2, expressionStart),
	function("sum", 2, expressionStart),

	value("0", 3),
	value("1", 4),
	value("10", 3),
	value("100", 2),
	value("True", 3),
	value("False", 3),
	value("None", 2),
	value(`"hello"`, 2),
	value("[]", 2),

	operator("=", 4, setOf(CategoryVariable)),
	operator("+=", 2, setOf(CategoryVariable)),
	operator("+", 3, operandEnd),
	operator("-", 3, operandEnd),
	operator("*", 2, operandEnd),
	operator("/", 2, operandEnd),
	operator("==", 3, operandEnd),
	operator("!=", 2, operandEnd),
	operator("<", 3, operandEnd),
	operator(">", 3, operandEnd),
	operator("<=", 2, operandEnd),
	operator(">=", 2, operandEnd),
	operator("and", 2, operandEnd),
	operator("or", 2, operandEnd),

	syntax("(", CategorySyntaxOpen, 6, setOf(CategoryFunction, CategoryKeyword, CategoryOperator, CategorySyntaxOpen, CategorySyntaxComma)),
	syntax(")", CategorySyntaxClose, 6, operandEnd|setOf(CategorySyntaxOpen)),
	syntax(":", CategorySyntaxColon, 5, setOf(CategorySyntaxClose, CategoryValue, CategoryVariable, CategoryKeyword)),
	syntax(",", CategorySyntaxComma, 3, operandEnd),

	special("Draw 2", EffectDraw2, 3),
	special("Discard 2", EffectDiscard2, 2),
	special("Skip", EffectSkip, 3),
	special("Wild", EffectWild, 2),
}

var (
	catalogIndex = make(map[string]int, len(catalog))
	totalCards   int
)

func init() {
	for i, c := range catalog {
		catalogIndex[c.ID] = i
		totalCards += c.Count
	}
}

// Lookup returns the catalog card with the given identity.
func Lookup(id string) (Card, error) {
	i, ok := catalogIndex[id]
	if !ok {
		return Card{}, fmt.Errorf("%w: %q", ErrCardNotFound, id)
	}
	return catalog[i], nil
}

// MustLookup is Lookup for identities known at compile time.
func MustLookup(id string) Card {
	c, err := Lookup(id)
	if err != nil {
		panic(err)
	}
	return c
}

// Catalog returns a copy of the card table in catalog order.
func Catalog() []Card {
	return append([]Card(nil), catalog...)
}

// TotalInstances is the number of cards in a fresh deck.
func TotalInstances() int {
	return totalCards
}

// CatalogOrder returns the position of id in the catalog, or -1.
func CatalogOrder(id string) int {
	if i, ok := catalogIndex[id]; ok {
		return i
	}
	return -1
}
