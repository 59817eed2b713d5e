// Package form reads HTML form controls into a name/value mapping.
package form

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/csvmapper-cli/internal/browser/page"
)

// controlsXPath selects the input-like descendants of a form in document order.
const controlsXPath = ".//input | .//textarea | .//select"

// ErrNotFound is returned by Find when nothing matches.
var ErrNotFound = errors.New("form not found")

// Values maps control names to their current value. Checkable controls hold
// a bool, every other control holds a string.
type Values map[string]any

// Read serializes the user-facing controls of a form. Controls without a
// name, hidden inputs, buttons and file inputs are skipped. When names
// repeat, the last control wins.
func Read(form *html.Node) Values {
	values := Values{}
	if form == nil {
		return values
	}
	for _, control := range htmlquery.Find(form, controlsXPath) {
		name := htmlquery.SelectAttr(control, "name")
		if name == "" {
			continue
		}
		value, ok := controlValue(control)
		if !ok {
			continue
		}
		values[name] = value
	}
	return values
}

// Hidden returns the named hidden inputs of a form, last duplicate winning.
// A submission needs them even though Read leaves them out.
func Hidden(form *html.Node) map[string]string {
	fields := map[string]string{}
	if form == nil {
		return fields
	}
	for _, n := range htmlquery.Find(form, ".//input") {
		if !strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden") {
			continue
		}
		if name := htmlquery.SelectAttr(n, "name"); name != "" {
			fields[name] = htmlquery.SelectAttr(n, "value")
		}
	}
	return fields
}

func controlValue(n *html.Node) (any, bool) {
	switch strings.ToLower(n.Data) {
	case "textarea":
		return htmlquery.InnerText(n), true
	case "select":
		return selectedOption(n), true
	}

	switch strings.ToLower(htmlquery.SelectAttr(n, "type")) {
	case "checkbox", "radio":
		return hasAttr(n, "checked"), true
	case "hidden", "submit", "button", "reset", "image", "file":
		return nil, false
	default:
		return htmlquery.SelectAttr(n, "value"), true
	}
}

// selectedOption mirrors a single-select's value: the selected option, else
// the first one.
func selectedOption(sel *html.Node) string {
	options := htmlquery.Find(sel, ".//option")
	if len(options) == 0 {
		return ""
	}
	chosen := options[0]
	for _, opt := range options {
		if hasAttr(opt, "selected") {
			chosen = opt
			break
		}
	}
	if hasAttr(chosen, "value") {
		return htmlquery.SelectAttr(chosen, "value")
	}
	return strings.TrimSpace(htmlquery.InnerText(chosen))
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// Bool returns the checked state of a checkable control.
func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// String returns the value of a text-style control.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Encode converts the values into a urlencoded submission the way a browser
// would post it: checked boxes send "on", unchecked boxes are omitted.
func (v Values) Encode() url.Values {
	out := url.Values{}
	for name, value := range v {
		switch val := value.(type) {
		case bool:
			if val {
				out.Set(name, "on")
			}
		case string:
			out.Set(name, val)
		default:
			out.Set(name, fmt.Sprint(val))
		}
	}
	return out
}

// Names returns the control names in sorted order.
func (v Values) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find locates a form in doc. expr is an XPath expression, or one of the
// simple selectors "#id" and "form[name=...]"; an empty expr picks the first
// form on the page.
func Find(doc *html.Node, expr string) (*html.Node, error) {
	if doc == nil {
		return nil, ErrNotFound
	}
	xpath, err := toXPath(expr)
	if err != nil {
		return nil, err
	}
	node, err := htmlquery.Query(doc, xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid form selector %q: %w", expr, err)
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, expr)
	}
	return node, nil
}

func toXPath(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return "//form", nil
	case strings.HasPrefix(expr, "/") || strings.HasPrefix(expr, "("):
		return expr, nil
	case strings.HasPrefix(expr, "#"):
		return "//form[@id=" + page.XPathLiteral(strings.TrimPrefix(expr, "#")) + "]", nil
	case strings.HasPrefix(expr, "form[name=") && strings.HasSuffix(expr, "]"):
		name := strings.Trim(strings.TrimSuffix(strings.TrimPrefix(expr, "form[name="), "]"), `'"`)
		return "//form[@name=" + page.XPathLiteral(name) + "]", nil
	}
	return "", fmt.Errorf("unsupported form selector %q", expr)
}

// Enclosing returns the nearest form ancestor of n, or nil.
func Enclosing(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, "form") {
			return p
		}
	}
	return nil
}
