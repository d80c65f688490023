package element

import (
	"context"
	"testing"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/infrastructure/browser/fakedriver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newHandle(t *testing.T, d *fakedriver.Driver, sel entities.Selector, name string) *Handle {
	t.Helper()
	h, err := New(d, sel, name)
	require.NoError(t, err)
	return h
}

func TestNew_NonEmptySelectorAlwaysConstructs(t *testing.T) {
	d := fakedriver.New()
	rapid.Check(t, func(t *rapid.T) {
		sel := rapid.StringN(1, 64, -1).Draw(t, "selector")
		name := rapid.String().Draw(t, "name")

		h, err := New(d, entities.Selector(sel), name)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", sel, err)
		}
		if h.Selector() != entities.Selector(sel) || h.Name() != name {
			t.Fatalf("handle kept %q/%q, want %q/%q", h.Selector(), h.Name(), sel, name)
		}
	})
}

func TestNew_RejectsInvalidArguments(t *testing.T) {
	_, err := New(fakedriver.New(), "", "empty")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	_, err = New(nil, "#search-term", "noDriver")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestHandle_ReResolvesOnEveryCall(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	h := newHandle(t, d, "#title", "title")

	exists, err := h.IsExisting(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	d.Set("#title", fakedriver.NewElement("Snowboards"))
	exists, err = h.IsExisting(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	d.Set("#title", fakedriver.NewElement("Skis"))
	text, err := h.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Skis", text)
}

func TestHandle_IsDisabled(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		attrs map[string]string
		want  bool
	}{
		{"no markers", map[string]string{"class": "btn primary"}, false},
		{"empty disabled attribute", map[string]string{"disabled": ""}, true},
		{"disabled class", map[string]string{"class": "btn btn--disabled"}, true},
		{"no class attribute", map[string]string{}, false},
		{"both", map[string]string{"disabled": "disabled", "class": "disabled"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fakedriver.New()
			el := fakedriver.NewElement("Add to cart")
			el.Attributes = tt.attrs
			d.Set("#add", el)

			got, err := newHandle(t, d, "#add", "add").IsDisabled(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandle_ClickWaitsForEnabled(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	el := fakedriver.NewElement("Add to cart")
	el.Enabled = false
	clicked := false
	el.OnClick = func() { clicked = true }
	d.Set("#add", el)

	d.After(30*time.Millisecond, func() { el.Enabled = true })
	require.NoError(t, newHandle(t, d, "#add", "add").Click(ctx))

	assert.True(t, clicked)
	assert.Equal(t, []string{"wait_displayed", "wait_enabled", "click"}, d.Ops())
}

func TestHandle_ClickTimesOutWhenNeverEnabled(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	el := fakedriver.NewElement("Add to cart")
	el.Enabled = false
	d.Set("#add", el)

	h := newHandle(t, d, "#add", "add")
	err := h.WaitForEnabled(ctx, WithTimeout(40*time.Millisecond))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout))
	assert.Contains(t, err.Error(), `"add"`)
	assert.Contains(t, err.Error(), "not enabled")
}

func TestHandle_ValueMutations(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	input := fakedriver.NewElement("")
	d.Set("#search-term", input)
	h := newHandle(t, d, "#search-term", "searchBar")

	require.NoError(t, h.SetValue(ctx, "Skate"))
	require.NoError(t, h.AddValue(ctx, " Banana"))
	d.Update(func() { assert.Equal(t, "Skate Banana", input.Value) })

	require.NoError(t, h.ClearValue(ctx))
	d.Update(func() { assert.Empty(t, input.Value) })
}

func TestHandle_CollectionReads(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	h := newHandle(t, d, ".brand", "brands")

	count, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = h.FirstText(ctx)
	assert.True(t, errs.Is(err, errs.NotFound))

	d.Set(".brand", fakedriver.NewElement("Lib Technologies"), fakedriver.NewElement("Burton"))
	texts, err := h.Texts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lib Technologies", "Burton"}, texts)

	first, err := h.FirstText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lib Technologies", first)
}

func TestHandle_StateQueries(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	el := fakedriver.NewElement("Snowboards")
	el.Selected = true
	el.InViewport = false
	el.CSS["color"] = "rgb(0, 0, 0)"
	el.Attributes["data-id"] = "title"
	el.Location = entities.Location{X: 12, Y: 40}
	d.Set("h1", el)
	h := newHandle(t, d, "h1", "pageTitle")

	selected, err := h.IsSelected(ctx)
	require.NoError(t, err)
	assert.True(t, selected)

	inViewport, err := h.IsDisplayedInViewport(ctx)
	require.NoError(t, err)
	assert.False(t, inViewport)

	require.NoError(t, h.ScrollIntoView(ctx))
	inViewport, err = h.IsDisplayedInViewport(ctx)
	require.NoError(t, err)
	assert.True(t, inViewport)

	color, err := h.CSSProperty(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "rgb(0, 0, 0)", color)

	value, ok, err := h.Attribute(ctx, "data-id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "title", value)

	_, ok, err = h.Attribute(ctx, "aria-label")
	require.NoError(t, err)
	assert.False(t, ok)

	loc, err := h.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.Location{X: 12, Y: 40}, loc)
}

func TestHandle_OperationsOnMissingElementReportNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHandle(t, fakedriver.New(), "#gone", "gone")

	displayed, err := h.IsDisplayed(ctx)
	require.NoError(t, err)
	assert.False(t, displayed)

	err = h.DoubleClick(ctx)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestHandle_HoverMovesToCenter(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	d.Set("#menu", fakedriver.NewElement("Ski & Snowboard"))

	require.NoError(t, newHandle(t, d, "#menu", "menu").Hover(ctx))
	calls := d.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"0", "0"}, calls[0].Args)
}

func TestHandle_PasteFromClipboard(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	d.Clipboard = "Skate Banana"
	input := fakedriver.NewElement("")
	d.Set("#search-term", input)

	require.NoError(t, newHandle(t, d, "#search-term", "searchBar").PasteFromClipboard(ctx))

	calls := d.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "execute", calls[0].Op)
	assert.Equal(t, "chord", calls[1].Op)
	assert.Equal(t, []string{clipboardModifier, "v"}, calls[1].Args)
	d.Update(func() {
		assert.True(t, input.Focused)
		assert.Equal(t, "Skate Banana", input.Value)
	})
}

func TestModifierFor(t *testing.T) {
	assert.Equal(t, "Meta", modifierFor("darwin"))
	assert.Equal(t, "Control", modifierFor("linux"))
	assert.Equal(t, "Control", modifierFor("windows"))
}
