// Package page gives the client layer read access to the page it is running
// against: the current URL and the parsed document.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Accessor is the capability the core needs from a browser page.
type Accessor interface {
	// CurrentURL is the absolute URL of the loaded page, or "" if none.
	CurrentURL() string
	// Document returns the parsed DOM of the loaded page.
	Document(ctx context.Context) (*html.Node, error)
}

// ErrNoDocument is returned by accessors that have not loaded a page.
var ErrNoDocument = errors.New("no page document loaded")

// Static is an Accessor over a fixed document.
type Static struct {
	URL string
	Doc *html.Node
}

var _ Accessor = (*Static)(nil)

// Parse reads an HTML document into a Static accessor.
func Parse(rawURL string, r io.Reader) (*Static, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %q: %w", rawURL, err)
	}
	return &Static{URL: rawURL, Doc: doc}, nil
}

// MustParseString is Parse for literals in tests and fixtures.
func MustParseString(rawURL, markup string) *Static {
	s, err := Parse(rawURL, strings.NewReader(markup))
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Static) CurrentURL() string { return s.URL }

func (s *Static) Document(context.Context) (*html.Node, error) {
	if s.Doc == nil {
		return nil, ErrNoDocument
	}
	return s.Doc, nil
}

// FieldValues returns the value attribute of every input named name, in
// document order.
func FieldValues(doc *html.Node, name string) []string {
	if doc == nil {
		return nil
	}
	var values []string
	for _, n := range htmlquery.Find(doc, "//input[@name="+XPathLiteral(name)+"]") {
		values = append(values, htmlquery.SelectAttr(n, "value"))
	}
	return values
}

// XPathLiteral quotes s for use inside an XPath expression.
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

// -- Query Parameters --

// Param is the result of reading one query parameter.
type Param struct {
	Value string
	// Present is false when the key does not occur in the query.
	Present bool
	// Bare is true when the key occurs without "=value".
	Bare bool
}

// QueryParam reads the first occurrence of name from the query string of
// rawURL. Values are percent-decoded without turning '+' into a space; a
// value that cannot be decoded is returned as is.
func QueryParam(rawURL, name string) Param {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return Param{}
	}
	for _, part := range strings.Split(u.RawQuery, "&") {
		key, value, hasValue := strings.Cut(part, "=")
		if unescaped, err := url.PathUnescape(key); err == nil {
			key = unescaped
		}
		if key != name {
			continue
		}
		if !hasValue {
			return Param{Present: true, Bare: true}
		}
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		return Param{Value: value, Present: true}
	}
	return Param{}
}
