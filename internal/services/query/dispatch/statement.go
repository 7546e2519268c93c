package dispatch

import (
	"strings"
	"unicode"
)

// skuStatement is the fixed lookup behind LookupSKU.
const skuStatement = "SELECT item_number, goods_id, seller_id FROM yamibuy_im.im_item WHERE item_number = ?"

var rowKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"VALUES":   true,
	"TABLE":    true,
	"CALL":     true,
	"CHECK":    true,
	"ANALYZE":  true,
	"OPTIMIZE": true,
	"REPAIR":   true,
	"CHECKSUM": true,
	"HELP":     true,
	"EXECUTE":  true,
	"FETCH":    true,
}

// cteBodies are the statements that may follow a WITH clause.
var cteBodies = map[string]bool{
	"SELECT":  true,
	"VALUES":  true,
	"TABLE":   true,
	"INSERT":  true,
	"REPLACE": true,
	"UPDATE":  true,
	"DELETE":  true,
	"MERGE":   true,
}

// returnsRows guesses whether q produces a result set from its leading
// keyword. It is a routing hint only; it is not a safety check.
func returnsRows(q string) bool {
	if containsWord(strings.ToUpper(q), "RETURNING") {
		return true
	}
	switch kw := firstKeyword(q); kw {
	case "WITH":
		return rowKeywords[statementAfterWith(q)]
	case "XA":
		words := topLevelWords(q)
		return len(words) > 1 && words[1] == "RECOVER"
	default:
		return rowKeywords[kw]
	}
}

// statementAfterWith returns the keyword of the statement the CTE list of q
// introduces, or "" when there is none.
func statementAfterWith(q string) string {
	words := topLevelWords(strings.TrimLeftFunc(q, func(r rune) bool { return unicode.IsSpace(r) || r == '(' }))
	for _, w := range words {
		if cteBodies[w] {
			return w
		}
	}
	return ""
}

// topLevelWords returns the upper-cased words of q outside parentheses,
// quoted text and comments.
func topLevelWords(q string) []string {
	var (
		words []string
		depth int
	)
	for i := 0; i < len(q); {
		c := q[i]
		switch {
		case c == '-' && strings.HasPrefix(q[i:], "--"), c == '#':
			j := strings.IndexByte(q[i:], '\n')
			if j < 0 {
				return words
			}
			i += j + 1
		case c == '/' && strings.HasPrefix(q[i:], "/*"):
			j := strings.Index(q[i+2:], "*/")
			if j < 0 {
				return words
			}
			i += j + 4
		case c == '\'' || c == '"' || c == '`':
			j := strings.IndexByte(q[i+1:], c)
			if j < 0 {
				return words
			}
			i += j + 2
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case isIdent(rune(c)):
			j := i
			for j < len(q) && isIdent(rune(q[j])) {
				j++
			}
			if depth == 0 {
				words = append(words, strings.ToUpper(q[i:j]))
			}
			i = j
		default:
			i++
		}
	}
	return words
}

func firstKeyword(q string) string {
	s := q
	for {
		s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(s, "--"), strings.HasPrefix(s, "#"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
			if end < 0 {
				end = len(s)
			}
			return strings.ToUpper(s[:end])
		}
	}
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		before := start == 0 || !isIdent(rune(s[start-1]))
		after := end == len(s) || !isIdent(rune(s[end]))
		if before && after {
			return true
		}
		i = end
	}
}

func isIdent(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
