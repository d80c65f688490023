package browser

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
	"shopflow/infrastructure/browser/fakedriver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll(t *testing.T) {
	calls := 0
	err := poll(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	}, time.Second, time.Millisecond, "never")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = poll(context.Background(), func(context.Context) (bool, error) { return false, nil },
		10*time.Millisecond, time.Millisecond, "still waiting")
	require.Error(t, err)
	assert.Equal(t, errs.Timeout, errs.CodeOf(err))
	assert.Equal(t, "still waiting", err.Error())

	boom := errors.New("boom")
	err = poll(context.Background(), func(context.Context) (bool, error) { return false, boom },
		time.Second, time.Millisecond, "")
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = poll(ctx, func(context.Context) (bool, error) { return false, nil }, time.Second, time.Millisecond, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateCondition(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	el := fakedriver.NewElement("Add to Cart")
	el.Enabled = false
	d.Set("#add", el)
	present, err := d.Find(ctx, "#add")
	require.NoError(t, err)
	missing, err := d.Find(ctx, "#missing")
	require.NoError(t, err)

	tests := []struct {
		node  interfaces.Node
		state interfaces.WaitState
		want  bool
	}{
		{present, interfaces.StateDisplayed, true},
		{present, interfaces.StateHidden, false},
		{present, interfaces.StateAttached, true},
		{present, interfaces.StateDetached, false},
		{present, interfaces.StateEnabled, false},
		{missing, interfaces.StateDisplayed, false},
		{missing, interfaces.StateHidden, true},
		{missing, interfaces.StateDetached, true},
		{missing, interfaces.StateEnabled, false},
	}
	for _, tt := range tests {
		cond, err := stateCondition(tt.node, tt.state)
		require.NoError(t, err)
		got, err := cond(ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s", tt.state)
	}

	_, err = stateCondition(present, "focused")
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestDecodeLocation(t *testing.T) {
	loc, err := decodeLocation(map[string]any{"x": 12.6, "y": json.Number("40")})
	require.NoError(t, err)
	assert.Equal(t, entities.Location{X: 13, Y: 40}, loc)

	_, err = decodeLocation("nope")
	assert.Error(t, err)
	_, err = decodeLocation(map[string]any{"x": "1", "y": 2})
	assert.Error(t, err)

	x, y, err := decodePoint(map[string]any{"x": 10, "y": 20.5})
	require.NoError(t, err)
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 20.5, y)
}

func TestSelectorTranslation(t *testing.T) {
	assert.Equal(t, "xpath=//h1", pwSelector(`//h1`))
	assert.Equal(t, "xpath=//h1", pwSelector(`xpath=//h1`))
	assert.Equal(t, "#search-term", pwSelector("#search-term"))

	by, value := relativeBy(`//*[@data-id="title"]`)
	assert.Equal(t, "xpath", by)
	assert.Equal(t, `.//*[@data-id="title"]`, value)

	by, value = seleniumBy(`[data-id="title"]`)
	assert.Equal(t, "css selector", by)
	assert.Equal(t, `[data-id="title"]`, value)

	assert.Equal(t, ".//span", relativeXPath("//span"))
	assert.Equal(t, "..", relativeXPath(".."))
}

func TestScriptWrappers(t *testing.T) {
	assert.Equal(t, "(el, args) => ((el) => el.id)(el, ...(args || []))", wrapFunction("(el) => el.id"))
	assert.Equal(t, "return ((el) => el.id).apply(null, arguments);", seleniumScript("(el) => el.id"))
	assert.Equal(t, "", stringResult(nil))
	assert.Equal(t, "12", stringResult(12))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New("netscape", Options{})
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "playwright, selenium, rod")
}

func TestEqualFrames(t *testing.T) {
	assert.True(t, equalFrames(nil, []entities.Selector{}))
	assert.True(t, equalFrames([]entities.Selector{"#a"}, []entities.Selector{"#a"}))
	assert.False(t, equalFrames([]entities.Selector{"#a"}, []entities.Selector{"#b"}))
	assert.False(t, equalFrames([]entities.Selector{"#a"}, nil))
}
