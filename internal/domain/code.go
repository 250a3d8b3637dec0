package domain

import "strings"

const indentUnit = "    "

// BuildCode renders the played sequence as Python source. SPECIAL cards are dropped,
// every colon ends a line and indents the next, and a block left without a body gets a
// "pass" placeholder so the output parses.
func BuildCode(seq []Card) string {
	var (
		lines  []string
		line   strings.Builder
		indent int
		body   bool // the current block has a statement
		prev   *Card
	)

	flush := func() {
		if line.Len() > 0 {
			lines = append(lines, strings.Repeat(indentUnit, indent)+line.String())
			line.Reset()
			body = true
		}
	}

	for k := range seq {
		c := seq[k]
		if c.Category == CategorySpecial {
			continue
		}

		if line.Len() == 0 && dedents(c) && indent > 0 {
			if !body {
				lines = append(lines, strings.Repeat(indentUnit, indent)+"pass")
			}
			indent--
		}

		if line.Len() > 0 && spaced(*prev, c) {
			line.WriteByte(' ')
		}
		line.WriteString(c.ID)
		prev = &seq[k]

		if c.Category == CategorySyntaxColon {
			flush()
			indent++
			body = false
			prev = nil
		}
	}
	flush()

	if len(lines) > 0 && !body {
		lines = append(lines, strings.Repeat(indentUnit, indent)+"pass")
	}
	return strings.Join(lines, "\n")
}

func dedents(c Card) bool {
	switch c.ID {
	case "else", "elif", "except":
		return true
	}
	return false
}

func spaced(prev, next Card) bool {
	switch next.Category {
	case CategorySyntaxClose, CategorySyntaxColon, CategorySyntaxComma:
		return false
	case CategorySyntaxOpen:
		switch prev.Category {
		case CategoryFunction, CategoryVariable, CategorySyntaxOpen, CategorySyntaxClose:
			return false
		}
	}
	return prev.Category != CategorySyntaxOpen
}
