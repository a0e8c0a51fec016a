package symbols

import (
	"strings"
	"unicode"
)

// Go keywords and predeclared identifiers that cannot be used as names.
var reservedWords = map[string]bool{
	"break":       true,
	"case":        true,
	"chan":        true,
	"const":       true,
	"continue":    true,
	"default":     true,
	"defer":       true,
	"else":        true,
	"fallthrough": true,
	"for":         true,
	"func":        true,
	"go":          true,
	"goto":        true,
	"if":          true,
	"import":      true,
	"interface":   true,
	"map":         true,
	"package":     true,
	"range":       true,
	"return":      true,
	"select":      true,
	"struct":      true,
	"switch":      true,
	"type":        true,
	"var":         true,
	"nil":         true,
	"true":        true,
	"false":       true,
	"iota":        true,
	"string":      true,
	"bool":        true,
	"error":       true,
	"len":         true,
	"any":         true,
}

// EscapeReserved escapes a reserved word by appending an underscore.
func EscapeReserved(name string) string {
	if reservedWords[name] {
		return name + "_"
	}
	return name
}

// Words splits an identifier into words on case changes, digits-to-letter
// boundaries and separators. "ABoolParam" → [A Bool Param],
// "UseFIPS" → [Use FIPS], "endpoint_url" → [endpoint url].
func Words(name string) []string {
	var words []string
	runes := []rune(name)
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		switch {
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			// fooBar: split before B
			flush(i)
			start = i
		case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			// ABool: split before B
			flush(i)
			start = i
		case unicode.IsLetter(r) && unicode.IsDigit(prev):
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return words
}

// UpperCamel converts name to an exported Go identifier. All-caps words are
// kept as initialisms.
func UpperCamel(name string) string {
	var b strings.Builder
	for _, w := range Words(name) {
		b.WriteString(capitalize(w))
	}
	out := b.String()
	if out == "" {
		return "X"
	}
	if unicode.IsDigit([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}

// LowerCamel converts name to an unexported Go identifier, escaping reserved
// words.
func LowerCamel(name string) string {
	words := Words(name)
	if len(words) == 0 {
		return "x"
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		b.WriteString(capitalize(w))
	}
	out := b.String()
	if unicode.IsDigit([]rune(out)[0]) {
		out = "x" + out
	}
	return EscapeReserved(out)
}

// Unexported lowers the first rune of an exported identifier.
func Unexported(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToLower(r[0])
	return EscapeReserved(string(r))
}

func capitalize(w string) string {
	if w == strings.ToUpper(w) {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
