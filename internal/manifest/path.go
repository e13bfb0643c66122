package manifest

import "strings"

// Path is a logical object path: namespace tokens joined by ':', followed by
// a '/'-separated path, e.g. "ns1:ns2:/seg/seg". Any Unicode is legal in a
// token except the ':' and '/' delimiters.
type Path struct {
	Namespace []string
	Segments  []string
}

// ParsePath splits raw into its namespace and path-segment tokens.
func ParsePath(raw string) Path {
	nsPart, pathPart, found := strings.Cut(raw, "/")
	if !found {
		// No '/' at all: treat the whole thing as namespace-less path.
		return Path{Segments: splitNonEmpty(raw, "/")}
	}
	return Path{Namespace: splitNonEmpty(nsPart, ":"), Segments: splitNonEmpty(pathPart, "/")}
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// String renders the path back to its canonical "ns1:ns2:/seg/seg" form.
func (p Path) String() string {
	var b strings.Builder
	for i, n := range p.Namespace {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(n)
	}
	if len(p.Namespace) > 0 {
		b.WriteByte(':')
	}
	for _, s := range p.Segments {
		b.WriteByte('/')
		b.WriteString(s)
	}
	if len(p.Segments) == 0 {
		b.WriteByte('/')
	}
	return b.String()
}
