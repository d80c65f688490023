package element

import (
	"context"
	"testing"
	"time"

	"shopflow/domain/errs"
	"shopflow/infrastructure/browser/fakedriver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForDisplayedThenNotDisplayed_ExternalToggle(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	alert := fakedriver.NewElement("Please select a size")
	alert.Displayed = false
	d.Set("#buybox-size-error", alert)
	h := newHandle(t, d, "#buybox-size-error", "sizeErrorAlert")

	d.After(20*time.Millisecond, func() { alert.Displayed = true })
	d.After(60*time.Millisecond, func() { alert.Displayed = false })

	require.NoError(t, h.WaitForDisplayed(ctx, WithTimeout(time.Second)))
	require.NoError(t, h.WaitForNotDisplayed(ctx, WithTimeout(time.Second)))
}

func TestWaitForDisplayed_TimesOutWhenVisibilityNeverChanges(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	alert := fakedriver.NewElement("Please select a size")
	alert.Displayed = false
	d.Set("#alert", alert)
	h := newHandle(t, d, "#alert", "alert")

	start := time.Now()
	err := h.WaitForDisplayed(ctx, WithTimeout(50*time.Millisecond))
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, errs.Timeout, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "still not displayed after 50ms")

	d.Update(func() { alert.Displayed = true })
	err = h.WaitForNotDisplayed(ctx, WithTimeout(50*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still displayed after 50ms")
}

func TestWaitForExistAndNotExist(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	h := newHandle(t, d, "#attentive_creative", "discountIframe")

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Set("#attentive_creative", fakedriver.NewElement(""))
	}()
	require.NoError(t, h.WaitForExist(ctx, WithTimeout(time.Second)))

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Remove("#attentive_creative")
	}()
	require.NoError(t, h.WaitForNotExist(ctx, WithTimeout(time.Second)))
}

func TestWaitForText(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	counter := fakedriver.NewElement("0")
	d.Set("#cart-count", counter)
	h := newHandle(t, d, "#cart-count", "cartCount")

	d.After(20*time.Millisecond, func() { counter.Text = "  1 \n" })
	require.NoError(t, h.WaitForText(ctx, "1", WithTimeout(time.Second)))

	err := h.WaitForText(ctx, "2", WithTimeout(30*time.Millisecond))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout))
	assert.Contains(t, err.Error(), `to change to "2"`)
}

func TestWaitForText_ToleratesMissingElement(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	h := newHandle(t, d, "#late", "late")

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Set("#late", fakedriver.NewElement("ready"))
	}()
	require.NoError(t, h.WaitForText(ctx, "ready", WithTimeout(time.Second)))
}

func TestWait_DefaultTimeouts(t *testing.T) {
	assert.Equal(t, 10*time.Second, resolveWait(DefaultTimeout, nil).timeout)
	assert.Equal(t, 5*time.Second, resolveWait(DefaultEnabledTimeout, nil).timeout)
	assert.Equal(t, time.Second, resolveWait(DefaultTimeout, []WaitOption{WithTimeout(time.Second)}).timeout)
	assert.Equal(t, DefaultTimeout, resolveWait(DefaultTimeout, []WaitOption{WithTimeout(0)}).timeout)
}

func TestWait_ContextCancellationAborts(t *testing.T) {
	d := fakedriver.New()
	hidden := fakedriver.NewElement("")
	hidden.Displayed = false
	d.Set("#never", hidden)
	h := newHandle(t, d, "#never", "never")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.WaitForDisplayed(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
