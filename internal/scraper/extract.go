package scraper

import (
	"strings"

	"golang.org/x/net/html"
)

// Selector matches an HTML element by tag, class, and attribute values.
// Empty fields match anything.
type Selector struct {
	Tag   string
	Class string
	Attrs map[string]string
}

func (s Selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.Tag != "" && n.Data != s.Tag {
		return false
	}
	if s.Class != "" && !hasClass(n, s.Class) {
		return false
	}
	for key, want := range s.Attrs {
		if attrVal(n, key) != want {
			return false
		}
	}
	return true
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findAll returns all descendants of n matching the selector, in document
// order. Matching nodes are not descended into.
func findAll(n *html.Node, sel Selector) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if sel.matches(c) {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, sel)...)
	}
	return out
}

// findFirst returns the first descendant of n matching the selector.
func findFirst(n *html.Node, sel Selector) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if sel.matches(c) {
			return c
		}
		if found := findFirst(c, sel); found != nil {
			return found
		}
	}
	return nil
}

// textContent returns the concatenated text of n's subtree, whitespace
// collapsed.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// imageSrc returns the image URL of an img node, checking lazy-loading
// attributes when src is empty.
func imageSrc(n *html.Node) string {
	for _, key := range []string{"src", "data-src", "data-lazy-src"} {
		if v := attrVal(n, key); v != "" {
			return v
		}
	}
	return ""
}

// absolutize resolves a possibly relative href against the page URL.
func absolutize(href, pageURL string) string {
	switch {
	case href == "" || strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return siteRoot(pageURL) + href
	default:
		base := pageURL
		if i := strings.Index(base, "?"); i >= 0 {
			base = base[:i]
		}
		if i := strings.LastIndex(base, "/"); i > len("https:/") {
			base = base[:i]
		}
		return base + "/" + href
	}
}

// siteRoot returns scheme://host for a URL.
func siteRoot(pageURL string) string {
	parts := strings.SplitN(pageURL, "/", 4)
	if len(parts) < 3 {
		return pageURL
	}
	return strings.Join(parts[:3], "/")
}

// categoryKeywords maps a category label to the lowercase substrings that
// select it. Order matters: the first matching category wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Smartphone", []string{"smartphone", "iphone", "samsung", "galaxy", "mobile"}},
	{"Ordinateur", []string{"pc", "laptop", "ordinateur", "macbook", "lenovo", "hp", "dell", "asus"}},
	{"Accessoires", []string{"casque", "écouteur", "earphone", "headphone", "charger", "cable", "câble"}},
	{"Électroménager", []string{"lave", "vaisselle", "machine", "laver", "réfrigérateur", "climatiseur", "frigo"}},
}

// DefaultCategory is assigned when no keyword matches.
const DefaultCategory = "Autre"

// DetectCategory classifies a product by keywords in its name.
func DetectCategory(name string) string {
	name = strings.ToLower(name)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(name, kw) {
				return entry.category
			}
		}
	}
	return DefaultCategory
}

var colorKeywords = []struct {
	color    string
	keywords []string
}{
	{"Noir", []string{"noir", "black", "negro"}},
	{"Bleu", []string{"blue", "bleu", "azul"}},
	{"Blanc", []string{"white", "blanc", "blanco"}},
	{"Gold", []string{"gold", "doré", "or"}},
	{"Rose", []string{"rose", "pink"}},
	{"Vert", []string{"vert", "green"}},
	{"Rouge", []string{"rouge", "red"}},
	{"Gris", []string{"gris", "gray", "grey"}},
}

// DefaultColor is assigned when no keyword matches.
const DefaultColor = "Non spécifié"

// DetectColor extracts a color label from keywords in a product name.
func DetectColor(name string) string {
	name = strings.ToLower(name)
	for _, entry := range colorKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(name, kw) {
				return entry.color
			}
		}
	}
	return DefaultColor
}
