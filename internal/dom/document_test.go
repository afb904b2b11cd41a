package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const controlsHTML = `<html><body>
<form id="f">
  <input id="name" name="fullName" value="Ada">
  <input id="weird" type="FANCY">
  <textarea id="notes">hello</textarea>
  <select id="country">
    <option value="IN">India</option>
    <option value="FR" selected>France</option>
  </select>
  <select id="plain"><option>  One
    Two </option></select>
  <input type="radio" name="r" value="a" checked>
  <input type="radio" name="r" value="b">
  <input type="file" id="upload">
</form>
<input type="radio" name="r" value="outside" checked>
</body></html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	require.NoError(t, err)
	return doc
}

func TestDocument_ScopeAndLookup(t *testing.T) {
	doc := mustParse(t, controlsHTML)

	scope := doc.Scope("f")
	assert.True(t, IsTag(scope, atom.Form))
	assert.Equal(t, doc.Root(), doc.Scope("missing"))

	assert.Nil(t, doc.GetElementByID(""))
	assert.NotNil(t, doc.GetElementByID("notes"))
	assert.Len(t, Controls(scope), 8)
}

func TestControlType(t *testing.T) {
	doc := mustParse(t, controlsHTML)

	tests := []struct {
		id   string
		want string
	}{
		{"name", "text"},
		{"weird", "text"},
		{"notes", "textarea"},
		{"country", "select-one"},
		{"upload", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ControlType(doc.GetElementByID(tt.id)))
		})
	}
}

func TestValueAndSetValue(t *testing.T) {
	doc := mustParse(t, controlsHTML)

	name := doc.GetElementByID("name")
	assert.Equal(t, "Ada", Value(name))
	require.NoError(t, SetValue(name, "Grace"))
	assert.Equal(t, "Grace", Value(name))

	notes := doc.GetElementByID("notes")
	assert.Equal(t, "hello", Value(notes))
	require.NoError(t, SetValue(notes, "bye"))
	assert.Equal(t, "bye", Value(notes))

	country := doc.GetElementByID("country")
	assert.Equal(t, "FR", Value(country))
	require.NoError(t, SetValue(country, "IN"))
	assert.Equal(t, "IN", Value(country))
	assert.Error(t, SetValue(country, "ZZ"))
	assert.Equal(t, "IN", Value(country))

	plain := doc.GetElementByID("plain")
	assert.Equal(t, "One Two", Value(plain))

	upload := doc.GetElementByID("upload")
	assert.Error(t, SetValue(upload, "C:\\fakepath\\x.pdf"))
	assert.NoError(t, SetValue(upload, ""))
}

func TestSetChecked_RadioGroupIsScopedToFormOwner(t *testing.T) {
	doc := mustParse(t, controlsHTML)

	radios := Descendants(doc.Root(), func(n *html.Node) bool {
		return IsTag(n, atom.Input) && ControlType(n) == "radio"
	})
	require.Len(t, radios, 3)

	SetChecked(radios[1], true)
	assert.False(t, Checked(radios[0]))
	assert.True(t, Checked(radios[1]))
	assert.True(t, Checked(radios[2]), "radio outside the form belongs to another group")

	SetChecked(radios[1], false)
	assert.False(t, Checked(radios[1]))
}

func TestClassHelpers(t *testing.T) {
	doc := mustParse(t, `<div id="d" class="a  b"></div>`)
	d := doc.GetElementByID("d")

	assert.True(t, HasClass(d, "b"))
	AddClass(d, "hidden")
	AddClass(d, "hidden")
	assert.Equal(t, "a b hidden", AttrOr(d, "class"))
	RemoveClass(d, "a")
	assert.Equal(t, "b hidden", AttrOr(d, "class"))
}

func TestDispatch_NotifiesListeners(t *testing.T) {
	doc := mustParse(t, controlsHTML)
	var got []string
	doc.AddListener(func(ev Event) {
		got = append(got, ev.Type+":"+AttrOr(ev.Target, "id"))
	})

	doc.Dispatch(doc.GetElementByID("name"), EventInput)
	doc.Dispatch(doc.GetElementByID("name"), EventChange)

	assert.Equal(t, []string{"input:name", "change:name"}, got)
}

func TestRender_ReflectsWrites(t *testing.T) {
	doc := mustParse(t, controlsHTML)
	require.NoError(t, SetValue(doc.GetElementByID("name"), "Grace"))

	assert.True(t, strings.Contains(doc.String(), `value="Grace"`))
}
