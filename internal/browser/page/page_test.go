package page

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dashboard = `<!doctype html>
<html><head><title>Dashboard</title></head>
<body>
  <form id="logout" method="post" action="/account/logout/">
    <input type="hidden" name="csrfmiddlewaretoken" value="first-token">
  </form>
  <form id="graph">
    <input type="hidden" name="csrfmiddlewaretoken" value="second-token">
    <input type="text" name="it's" value="quoted">
  </form>
</body></html>`

func TestStatic(t *testing.T) {
	t.Run("should expose the parsed document and url", func(t *testing.T) {
		p := MustParseString("http://localhost:8000/", dashboard)
		assert.Equal(t, "http://localhost:8000/", p.CurrentURL())

		doc, err := p.Document(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, doc)
	})

	t.Run("should report a missing document", func(t *testing.T) {
		_, err := (&Static{URL: "http://localhost/"}).Document(context.Background())
		assert.ErrorIs(t, err, ErrNoDocument)
	})

	t.Run("should parse from a reader", func(t *testing.T) {
		p, err := Parse("file:///tmp/page.html", strings.NewReader("<p>hi</p>"))
		require.NoError(t, err)
		assert.NotNil(t, p.Doc)
	})
}

func TestFieldValues(t *testing.T) {
	doc := MustParseString("http://localhost/", dashboard).Doc

	t.Run("should return every match in document order", func(t *testing.T) {
		assert.Equal(t, []string{"first-token", "second-token"}, FieldValues(doc, "csrfmiddlewaretoken"))
	})

	t.Run("should return nothing for an absent field", func(t *testing.T) {
		assert.Empty(t, FieldValues(doc, "missing"))
	})

	t.Run("should quote names containing apostrophes", func(t *testing.T) {
		assert.Equal(t, []string{"quoted"}, FieldValues(doc, "it's"))
	})

	t.Run("should tolerate a nil document", func(t *testing.T) {
		assert.Nil(t, FieldValues(nil, "csrfmiddlewaretoken"))
	})
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", XPathLiteral("plain"))
	assert.Equal(t, `"it's"`, XPathLiteral("it's"))
	assert.Equal(t, `concat('a"b', "'", 'c')`, XPathLiteral(`a"b'c`))
}

func TestQueryParam(t *testing.T) {
	cases := []struct {
		name string
		url  string
		key  string
		want Param
	}{
		{"decoded value", "http://h/graphs?graph=12&name=Monthly%20Sales", "name", Param{Value: "Monthly Sales", Present: true}},
		{"plus is kept", "http://h/?q=a+b", "q", Param{Value: "a+b", Present: true}},
		{"bare key", "http://h/sources?edit&id=3", "edit", Param{Present: true, Bare: true}},
		{"empty value is not bare", "http://h/?id=", "id", Param{Value: "", Present: true}},
		{"first occurrence wins", "http://h/?id=1&id=2", "id", Param{Value: "1", Present: true}},
		{"absent", "http://h/?id=1", "graph", Param{}},
		{"no query", "http://h/graphs", "graph", Param{}},
		{"undecodable value is raw", "http://h/?v=%zz", "v", Param{Value: "%zz", Present: true}},
		{"encoded key", "http://h/?my%20key=1", "my key", Param{Value: "1", Present: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, QueryParam(tc.url, tc.key))
		})
	}
}
