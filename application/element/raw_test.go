package element

import (
	"context"
	"encoding/json"
	"testing"

	"shopflow/domain/errs"
	"shopflow/infrastructure/browser/fakedriver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaw_ScriptOperations(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	el := fakedriver.NewElement("")
	el.ScrollHeight = 1800
	el.ScrollTop = 240
	d.Set("#results", el)
	raw := newHandle(t, d, "#results", "results").Raw()

	require.NoError(t, raw.SetAttribute(ctx, "data-testid", "results"))
	require.NoError(t, raw.SetStyle(ctx, map[string]string{"display": "none"}))
	require.NoError(t, raw.Focus(ctx))

	height, err := raw.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1800, height)

	top, err := raw.ScrollTop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 240, top)

	d.Update(func() {
		assert.Equal(t, "results", el.Attributes["data-testid"])
		assert.Equal(t, "none", el.Style["display"])
		assert.True(t, el.Focused)
	})
}

func TestRaw_SkipsWaitsAndEnabledChecks(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	el := fakedriver.NewElement("Add to cart")
	el.Enabled = false
	el.Displayed = false
	clicked := false
	el.OnClick = func() { clicked = true }
	d.Set("#add", el)

	require.NoError(t, newHandle(t, d, "#add", "add").Raw().Click(ctx))
	assert.True(t, clicked)
	assert.Equal(t, []string{"execute"}, d.Ops())
}

func TestRaw_MissingElementIsNoOp(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	raw := newHandle(t, d, "#missing", "missing").Raw()

	present, err := raw.Present(ctx)
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, raw.Focus(ctx))
	height, err := raw.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.Zero(t, height)
	assert.Empty(t, d.Ops())
}

func TestRaw_ClickOnMissingElementFails(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	raw := newHandle(t, d, "#does-not-exist", "missing").Raw()

	err := raw.Click(ctx)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
	assert.Empty(t, d.Ops())
}

func TestToInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{nil, 0},
		{42, 42},
		{int64(7), 7},
		{99.6, 100},
		{json.Number("12"), 12},
	}
	for _, tt := range tests {
		got, err := toInt(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := toInt("12")
	assert.Error(t, err)
}
