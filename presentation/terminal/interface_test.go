package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
	"shopflow/infrastructure/browser"
	"shopflow/infrastructure/browser/fakedriver"
	"shopflow/infrastructure/config"
	"shopflow/infrastructure/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, opts ...Option) (*App, interfaces.RunStore) {
	t.Helper()
	cfg, err := config.FromEnv(func(string) string { return "" })
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := storage.NewRunHistory(filepath.Join(t.TempDir(), "history.json"))
	opts = append([]Option{WithStore(store)}, opts...)
	return NewApp(cfg, logger, opts...), store
}

func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := app.RootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestList(t *testing.T) {
	app, _ := newTestApp(t)
	out, err := execute(t, app, "list")
	require.NoError(t, err)
	for _, name := range []string{"add-to-cart", "header-menu", "listing-contains", "storefront"} {
		assert.Contains(t, out, name)
	}
}

func TestAudit_FixtureStorefrontMatchesAllSelectors(t *testing.T) {
	app, _ := newTestApp(t)
	out, err := execute(t, app, "audit")
	require.NoError(t, err, out)
	assert.Contains(t, out, "home")
	assert.Contains(t, out, "snowboards")
	assert.NotContains(t, out, "FAIL")
}

func TestAudit_Files(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listing.html")
	require.NoError(t, os.WriteFile(path, []byte(`<html><body><h1>Snowboards</h1></body></html>`), 0o644))

	app, _ := newTestApp(t)
	out, err := execute(t, app, "audit", "--page", "snowboards", path)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.AssertionFailed))
	assert.Contains(t, out, "FAIL")
	assert.Regexp(t, `ok\s+pageTitle`, out)

	_, err = execute(t, app, "audit", "--page", "checkout", path)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestAudit_SelectorOverrides(t *testing.T) {
	dir := t.TempDir()
	overrides := filepath.Join(dir, "selectors.yaml")
	require.NoError(t, os.WriteFile(overrides, []byte("snowboards:\n  pageTitle: \"h2.title\"\n"), 0o644))
	page := filepath.Join(dir, "listing.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body><h2 class="title">Boards</h2></body></html>`), 0o644))

	app, _ := newTestApp(t)
	app.cfg.SelectorsFile = overrides
	out, _ := execute(t, app, "audit", page)
	assert.Regexp(t, `ok\s+pageTitle\s+h2\.title`, out)
}

func TestRun_UnknownScenario(t *testing.T) {
	called := false
	app, _ := newTestApp(t, WithDriverFactory(func(string, browser.Options) (interfaces.Driver, error) {
		called = true
		return fakedriver.New(), nil
	}))
	_, err := execute(t, app, "run", "checkout")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
	assert.False(t, called)
}

func TestRun_DriverFailure(t *testing.T) {
	app, _ := newTestApp(t, WithDriverFactory(func(string, browser.Options) (interfaces.Driver, error) {
		return nil, errors.New("no chrome")
	}))
	_, err := execute(t, app, "run", "storefront")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize browser: no chrome")
}

func TestRun_RecordsFailedRun(t *testing.T) {
	var gotName string
	var gotOpts browser.Options
	app, store := newTestApp(t, WithDriverFactory(func(name string, opts browser.Options) (interfaces.Driver, error) {
		gotName, gotOpts = name, opts
		return fakedriver.New(), nil
	}))

	out, err := execute(t, app, "--driver", "rod", "--headless=false", "run", "listing-contains", "--title-timeout", "30ms")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.AssertionFailed))
	assert.Equal(t, "rod", gotName)
	assert.False(t, gotOpts.Headless)
	assert.Contains(t, out, "FAILED listing-contains")
	assert.Contains(t, out, "skipped")

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "listing-contains", records[0].Scenario)
	assert.Equal(t, entities.RunStatusFailed, records[0].Status)
	assert.True(t, strings.HasPrefix(records[0].BaseURL, "http://127.0.0.1:"))
}

func TestHistory(t *testing.T) {
	app, store := newTestApp(t)
	start := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"storefront", "header-menu", "storefront"} {
		require.NoError(t, store.Append(entities.RunRecord{
			ID:        name + string(rune('a'+i)),
			Scenario:  name,
			Driver:    "playwright",
			Status:    entities.RunStatusPassed,
			StartedAt: start.Add(time.Duration(i) * time.Hour),
		}))
	}

	out, err := execute(t, app, "history", "--scenario", "storefront")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "SCENARIO")
	assert.Contains(t, lines[1], "storefrontc")
	assert.Contains(t, lines[2], "storefronta")

	out, err = execute(t, app, "history", "-n", "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}
