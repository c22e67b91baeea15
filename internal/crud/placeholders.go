package crud

import (
	"strconv"
	"strings"
)

// bindPlaceholders rewrites a caller-supplied SQL fragment to pgx positional
// parameters numbered after offset. Outside quoted literals and identifiers,
// each %s becomes the next $n, an existing $n is shifted by offset and %%
// collapses to %.
func bindPlaceholders(fragment string, offset int) string {
	var b strings.Builder
	b.Grow(len(fragment) + 8)

	count := 0
	var quote byte
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				// doubled quotes escape themselves
				if i+1 < len(fragment) && fragment[i+1] == quote {
					b.WriteByte(quote)
					i++
					continue
				}
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '%' && i+1 < len(fragment) && fragment[i+1] == 's':
			count++
			b.WriteString("$" + strconv.Itoa(offset+count))
			i++
		case c == '%' && i+1 < len(fragment) && fragment[i+1] == '%':
			b.WriteByte('%')
			i++
		case c == '$' && i+1 < len(fragment) && isDigit(fragment[i+1]):
			j := i + 1
			for j < len(fragment) && isDigit(fragment[j]) {
				j++
			}
			n, _ := strconv.Atoi(fragment[i+1 : j])
			b.WriteString("$" + strconv.Itoa(offset+n))
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// placeholderStyles reports which parameter styles appear outside quoted
// literals and identifiers.
func placeholderStyles(fragment string) (percent, dollar bool) {
	var quote byte
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == '%' && i+1 < len(fragment) && fragment[i+1] == '%':
			i++
		case c == '%' && i+1 < len(fragment) && fragment[i+1] == 's':
			percent = true
			i++
		case c == '$' && i+1 < len(fragment) && isDigit(fragment[i+1]):
			dollar = true
		}
	}
	return percent, dollar
}

// ValidatePlaceholders rejects fragments that mix %s and $n parameters,
// which would bind two placeholders to the same position.
func ValidatePlaceholders(fragment string) error {
	if percent, dollar := placeholderStyles(fragment); percent && dollar {
		return invalid("Use either %%s or $n placeholders, not both")
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// placeholders returns "$from, $from+1, ..." for n parameters.
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(parts, ", ")
}
