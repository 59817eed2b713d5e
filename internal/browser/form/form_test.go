package form

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestRead(t *testing.T) {
	t.Run("should read text and checkbox controls", func(t *testing.T) {
		doc := parse(t, `<form>
			<input type="text" name="city" value="NYC">
			<input type="checkbox" name="subscribe" checked>
		</form>`)
		f, err := Find(doc, "")
		require.NoError(t, err)

		assert.Equal(t, Values{"city": "NYC", "subscribe": true}, Read(f))
	})

	t.Run("should read the source form of the dashboard", func(t *testing.T) {
		doc := parse(t, `<form id="source-form">
			<input type="hidden" name="csrfmiddlewaretoken" value="tok">
			<input class="form-control" name="name" value="  Temps ">
			<input class="form-control" name="location" value="https://example.com/t.csv">
			<input class="form-check-input" type="checkbox" name="has_header">
			<textarea name="notes">multi
line</textarea>
			<select name="plot_type">
				<option value="none">None</option>
				<option value="line" selected>Line</option>
			</select>
			<button type="submit" name="go">Save</button>
			<input type="submit" name="save" value="Save">
			<input type="file" name="upload">
			<input type="text" value="anonymous">
		</form>`)
		f, err := Find(doc, "#source-form")
		require.NoError(t, err)

		got := Read(f)
		assert.Equal(t, Values{
			"name":       "  Temps ",
			"location":   "https://example.com/t.csv",
			"has_header": false,
			"notes":      "multi\nline",
			"plot_type":  "line",
		}, got, "values are raw; hidden inputs, buttons, files and nameless controls are skipped")
		assert.Equal(t, map[string]string{"csrfmiddlewaretoken": "tok"}, Hidden(f))
	})

	t.Run("should let the last duplicate win", func(t *testing.T) {
		doc := parse(t, `<form>
			<input type="radio" name="axis" value="x" checked>
			<input type="radio" name="axis" value="y">
			<input name="label" value="first">
			<input name="label" value="second">
		</form>`)
		f, _ := Find(doc, "")

		got := Read(f)
		assert.Equal(t, false, got["axis"])
		assert.Equal(t, "second", got["label"])
	})

	t.Run("should default a select to its first option", func(t *testing.T) {
		doc := parse(t, `<form><select name="p"><option>Bar</option><option value="pie">Pie</option></select></form>`)
		f, _ := Find(doc, "")
		assert.Equal(t, "Bar", Read(f)["p"])
	})

	t.Run("should return an empty mapping for nil", func(t *testing.T) {
		assert.Empty(t, Read(nil))
	})
}

func TestHidden(t *testing.T) {
	t.Run("should collect named hidden inputs only", func(t *testing.T) {
		doc := parse(t, `<form>
			<input type="HIDDEN" name="next" value="/graphs">
			<input type="hidden" value="anonymous">
			<input type="hidden" name="csrfmiddlewaretoken" value="a">
			<input type="hidden" name="csrfmiddlewaretoken" value="b">
			<input name="username" value="analyst">
		</form>`)
		f, _ := Find(doc, "")

		assert.Equal(t, map[string]string{"next": "/graphs", "csrfmiddlewaretoken": "b"}, Hidden(f))
	})

	t.Run("should return an empty mapping for nil", func(t *testing.T) {
		assert.Empty(t, Hidden(nil))
	})
}

func TestValues(t *testing.T) {
	v := Values{"username": "alice", "remember": true, "terms": false}

	assert.True(t, v.Bool("remember"))
	assert.False(t, v.Bool("username"))
	assert.Equal(t, "alice", v.String("username"))
	assert.Equal(t, []string{"remember", "terms", "username"}, v.Names())

	enc := v.Encode()
	assert.Equal(t, "alice", enc.Get("username"))
	assert.Equal(t, "on", enc.Get("remember"))
	_, sent := enc["terms"]
	assert.False(t, sent, "unchecked boxes are not submitted")
}

func TestFind(t *testing.T) {
	doc := parse(t, `<body>
		<form id="login" name="auth"><input name="password" type="password"></form>
		<form id="other"></form>
	</body>`)

	cases := map[string]string{
		"":                                   "login",
		"#other":                             "other",
		"form[name='auth']":                  "login",
		"//form[.//input[@name='password']]": "login",
	}
	for expr, wantID := range cases {
		t.Run("should resolve "+expr, func(t *testing.T) {
			f, err := Find(doc, expr)
			require.NoError(t, err)
			assert.Equal(t, wantID, htmlquery.SelectAttr(f, "id"))
		})
	}

	t.Run("should quote selector values containing apostrophes", func(t *testing.T) {
		quoted := parse(t, `<form id="o'brien" name="it's"></form>`)

		byID, err := Find(quoted, "#o'brien")
		require.NoError(t, err)
		assert.Equal(t, "o'brien", htmlquery.SelectAttr(byID, "id"))

		byName, err := Find(quoted, `form[name="it's"]`)
		require.NoError(t, err)
		assert.Equal(t, "it's", htmlquery.SelectAttr(byName, "name"))
	})

	t.Run("should report no match", func(t *testing.T) {
		_, err := Find(doc, "#missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should reject unsupported selectors", func(t *testing.T) {
		_, err := Find(doc, ".card form")
		assert.Error(t, err)
	})

	t.Run("should reject invalid xpath", func(t *testing.T) {
		_, err := Find(doc, "//form[")
		assert.Error(t, err)
	})
}

func TestEnclosing(t *testing.T) {
	doc := parse(t, `<form id="f"><div><input name="x"></div></form>`)
	input := htmlquery.FindOne(doc, "//input")
	f := Enclosing(input)
	require.NotNil(t, f)
	assert.Equal(t, "f", htmlquery.SelectAttr(f, "id"))
	assert.Nil(t, Enclosing(doc))
}
