package endpoint

import (
	"fmt"
	"sort"
)

// helper is a function or type of the endpointlib package that generated
// resolvers call.
type helper struct {
	imports  []string
	requires []string
	code     string
}

var helpers = map[string]helper{
	"URL": {
		code: `// URL is a URL parsed by ParseURL.
type URL struct {
	Scheme         string
	Authority      string
	Path           string
	NormalizedPath string
	IsIP           bool
}`,
	},
	"ParseURL": {
		imports:  []string{"net", "net/url", "strings"},
		requires: []string{"URL"},
		code: `// ParseURL parses an http or https URL without a query string. It returns
// nil if value is not such a URL.
func ParseURL(value string) *URL {
	u, err := url.Parse(value)
	if err != nil || u.RawQuery != "" || u.ForceQuery || u.Host == "" {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	path := u.EscapedPath()
	normalized := path
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}
	return &URL{
		Scheme:         u.Scheme,
		Authority:      u.Host,
		Path:           path,
		NormalizedPath: normalized,
		IsIP:           net.ParseIP(u.Hostname()) != nil,
	}
}`,
	},
	"Substring": {
		code: `// Substring returns input[start:stop], counted from the end of input when
// reverse is set. It returns nil when the bounds do not fit or input is not
// ASCII.
func Substring(input string, start, stop int, reverse bool) *string {
	if start < 0 || start >= stop || len(input) < stop {
		return nil
	}
	for i := 0; i < len(input); i++ {
		if input[i] > 127 {
			return nil
		}
	}
	out := input[start:stop]
	if reverse {
		out = input[len(input)-stop : len(input)-start]
	}
	return &out
}`,
	},
	"URIEncode": {
		imports: []string{"fmt", "strings"},
		code: `// URIEncode percent-encodes every byte of value except unreserved
// characters.
func URIEncode(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}`,
	},
	"IsValidHostLabel": {
		imports: []string{"strings"},
		code: `// IsValidHostLabel reports whether value is a valid DNS host label. With
// allowDots every dot-separated label must be valid.
func IsValidHostLabel(value string, allowDots bool) bool {
	if !allowDots {
		return isValidHostLabel(value)
	}
	for _, label := range strings.Split(value, ".") {
		if !isValidHostLabel(label) {
			return false
		}
	}
	return true
}

func isValidHostLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		alnum := 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
		if !alnum && (c != '-' || i == 0) {
			return false
		}
	}
	return true
}`,
	},
}

// helperClosure returns the named helpers plus everything they require,
// sorted by name.
func helperClosure(names []string) ([]string, error) {
	seen := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		h, ok := helpers[name]
		if !ok {
			return fmt.Errorf("unknown endpointlib helper %q", name)
		}
		seen[name] = true
		for _, dep := range h.requires {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
