// Package terminal exposes the shopflow command line.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"shopflow/application/audit"
	"shopflow/application/pageobject"
	"shopflow/application/pages"
	"shopflow/application/scenario"
	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
	"shopflow/infrastructure/browser"
	"shopflow/infrastructure/config"
	"shopflow/infrastructure/storage"
	"shopflow/infrastructure/storefront"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DefaultProductPath is the detail page audited with the snowboards map.
const DefaultProductPath = "/product/lib-tech-skate-banana-snowboard-2025"

// DriverFactory opens a browser backend by name.
type DriverFactory func(name string, opts browser.Options) (interfaces.Driver, error)

// App wires configuration, logging and storage into the CLI commands.
type App struct {
	cfg       *config.Config
	logger    *logrus.Logger
	newDriver DriverFactory
	store     interfaces.RunStore
}

// Option configures an App.
type Option func(*App)

// WithDriverFactory replaces browser.New.
func WithDriverFactory(f DriverFactory) Option {
	return func(a *App) { a.newDriver = f }
}

// WithStore replaces the run history file.
func WithStore(store interfaces.RunStore) Option {
	return func(a *App) { a.store = store }
}

// NewApp builds the CLI on cfg.
func NewApp(cfg *config.Config, logger *logrus.Logger, opts ...Option) *App {
	a := &App{
		cfg:       cfg,
		logger:    logger,
		newDriver: browser.New,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.store == nil {
		a.store = storage.NewRunHistory(cfg.HistoryPath)
	}
	return a
}

// RootCommand returns the shopflow command tree.
func (a *App) RootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "shopflow",
		Short: "Run storefront UI workflows through page objects",
		Long: `shopflow drives a storefront through page objects and element handles.

Without a base URL, workflows and audits run against the built-in fixture storefront.

Example:
  shopflow run storefront --driver rod
  SHOPFLOW_BASE_URL=https://www.backcountry.com shopflow run add-to-cart`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				a.logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfg.Driver, "driver", a.cfg.Driver, "Browser driver: "+strings.Join(browser.Backends(), ", "))
	root.PersistentFlags().StringVar(&a.cfg.BaseURL, "base-url", a.cfg.BaseURL, "Storefront base URL (default: built-in fixture storefront)")
	root.PersistentFlags().BoolVar(&a.cfg.Headless, "headless", a.cfg.Headless, "Run the browser headless")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")

	root.AddCommand(a.runCommand(), a.listCommand(), a.auditCommand(), a.serveCommand(), a.historyCommand())
	return root
}

func (a *App) runCommand() *cobra.Command {
	params := scenario.DefaultParams()
	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run named scenarios (default: storefront)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"storefront"}
			}
			var scenarios []scenario.Scenario
			for _, name := range args {
				sc, err := scenario.Lookup(name, params)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}
			return a.run(cmd.Context(), cmd.OutOrStdout(), scenarios)
		},
	}
	cmd.Flags().StringVar(&params.ListingPath, "listing", params.ListingPath, "Listing page path")
	cmd.Flags().StringVar(&params.Product, "product", params.Product, "Full product name expected in the listing and cart")
	cmd.Flags().StringVar(&params.SearchTerm, "search", params.SearchTerm, "Search keyword")
	cmd.Flags().StringVar(&params.Size, "size", params.Size, "Size option to pick")
	cmd.Flags().DurationVar(&params.TitleTimeout, "title-timeout", params.TitleTimeout, "How long to wait for the listing title")
	return cmd
}

func (a *App) run(ctx context.Context, out io.Writer, scenarios []scenario.Scenario) error {
	overrides, err := config.LoadSelectorOverrides(a.cfg.SelectorsFile)
	if err != nil {
		return err
	}

	baseURL, stop, err := a.baseURL()
	if err != nil {
		return err
	}
	defer stop()

	a.logger.Infof("Starting %s browser", a.cfg.Driver)
	driver, err := a.newDriver(a.cfg.Driver, browser.Options{
		Headless:     a.cfg.Headless,
		SlowMo:       a.cfg.SlowMo,
		DriverPath:   a.cfg.DriverPath,
		ChromeBinary: a.cfg.ChromeBinary,
		StatePath:    a.cfg.StatePath,
		Logger:       a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			a.logger.Warnf("Failed to close browser: %v", err)
		}
	}()

	runner, err := scenario.NewRunner(driver, baseURL,
		scenario.WithLogger(a.logger),
		scenario.WithStore(a.store),
		scenario.WithSelectorOverrides(overrides),
	)
	if err != nil {
		return err
	}

	failed := 0
	for _, sc := range scenarios {
		record, err := runner.Run(ctx, sc)
		printRecord(out, record)
		if err != nil {
			failed++
			a.logger.WithError(err).Errorf("Scenario %s did not pass", sc.Name)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("run canceled: %w", ctx.Err())
		}
	}
	if failed > 0 {
		return errs.New(errs.AssertionFailed, fmt.Sprintf("%d of %d scenarios failed", failed, len(scenarios)))
	}
	return nil
}

func printRecord(out io.Writer, record entities.RunRecord) {
	fmt.Fprintf(out, "%s %s (%s, %d steps, %v)\n", strings.ToUpper(string(record.Status)), record.Scenario,
		record.Driver, len(record.Steps), record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond))
	for _, step := range record.Steps {
		line := fmt.Sprintf("  %-7s %s", step.Status, step.Name)
		if step.Error != "" {
			line += ": " + step.Error
		}
		fmt.Fprintln(out, line)
	}
}

// baseURL returns the configured base URL, or starts the fixture storefront
// on a loopback port when none is set.
func (a *App) baseURL() (string, func(), error) {
	if a.cfg.BaseURL != "" {
		return strings.TrimRight(a.cfg.BaseURL, "/"), func() {}, nil
	}
	shop, err := storefront.New(nil, storefront.WithLogger(a.logger))
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen for fixture storefront: %w", err)
	}
	srv := &http.Server{Handler: shop, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf("Fixture storefront stopped: %v", err)
		}
	}()
	url := "http://" + ln.Addr().String()
	a.logger.Infof("Fixture storefront listening on %s", url)
	return url, func() { _ = srv.Close() }, nil
}

func (a *App) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, sc := range scenario.Builtin(scenario.DefaultParams()) {
				fmt.Fprintf(w, "%s\t%d steps\t%s\n", sc.Name, len(sc.Steps), sc.Description)
			}
			return w.Flush()
		},
	}
}

// pageSelectors are the selector maps the audit knows, keyed by page name.
var pageSelectors = map[string]entities.SelectorMap{
	"home":       pages.HomeSelectors,
	"snowboards": pages.SnowboardsSelectors,
}

func (a *App) auditCommand() *cobra.Command {
	var (
		page        string
		listingPath string
		productPath string
		promoPath   string
	)
	cmd := &cobra.Command{
		Use:   "audit [file.html...]",
		Short: "Check page selectors against HTML without a browser",
		Long: `audit matches every selector of the page maps against static HTML.

With files, they are audited against the --page map. Without files, the
storefront pages are fetched from the base URL (or the fixture storefront).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := config.LoadSelectorOverrides(a.cfg.SelectorsFile)
			if err != nil {
				return err
			}
			selectors := func(name string) entities.SelectorMap {
				base := pageSelectors[name]
				if o := overrides.For(name); len(o) > 0 {
					return pageobject.Merge(base, o)
				}
				return base
			}

			var reports []audit.Report
			if len(args) > 0 {
				if _, ok := pageSelectors[page]; !ok {
					return errs.New(errs.InvalidArgument, fmt.Sprintf("unknown page %q", page))
				}
				docs, err := parseFiles(args)
				if err != nil {
					return err
				}
				reports = append(reports, audit.Check(page, selectors(page), docs...))
			} else {
				baseURL, stop, err := a.baseURL()
				if err != nil {
					return err
				}
				defer stop()
				paths := map[string][]string{
					"home":       {"/", promoPath},
					"snowboards": {listingPath, productPath},
				}
				for _, name := range []string{"home", "snowboards"} {
					docs := a.fetchDocuments(cmd.Context(), baseURL, paths[name])
					reports = append(reports, audit.Check(name, selectors(name), docs...))
				}
			}

			failed := 0
			for _, r := range reports {
				failed += printReport(cmd.OutOrStdout(), r)
			}
			if failed > 0 {
				return errs.New(errs.AssertionFailed, fmt.Sprintf("%d selectors did not match", failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&page, "page", "snowboards", "Page map used for files: home, snowboards")
	cmd.Flags().StringVar(&listingPath, "listing", "/shop/snowboards", "Listing page path")
	cmd.Flags().StringVar(&productPath, "product-path", DefaultProductPath, "Product detail page path")
	cmd.Flags().StringVar(&promoPath, "promo-path", "/promo", "Promotional iframe path")
	return cmd
}

func parseFiles(paths []string) ([]*audit.Document, error) {
	var docs []*audit.Document
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		doc, err := audit.Parse(filepath.Base(path), f)
		f.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// fetchDocuments downloads and parses every path. Pages that cannot be
// fetched are logged and left out of the audit.
func (a *App) fetchDocuments(ctx context.Context, baseURL string, paths []string) []*audit.Document {
	client := &http.Client{Timeout: 15 * time.Second}
	var docs []*audit.Document
	for _, path := range paths {
		url := baseURL + path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			a.logger.Warnf("Skipping %s: %v", url, err)
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			a.logger.Warnf("Skipping %s: %v", url, err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			a.logger.Warnf("Skipping %s: status %d", url, resp.StatusCode)
			continue
		}
		doc, err := audit.Parse(path, resp.Body)
		resp.Body.Close()
		if err != nil {
			a.logger.Warnf("Skipping %s: %v", url, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func printReport(out io.Writer, r audit.Report) int {
	fmt.Fprintf(out, "%s\n", r.Page)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	failed := 0
	for _, f := range r.Findings {
		status := "ok"
		detail := fmt.Sprintf("%d matches", f.Total())
		if !f.OK() {
			status = "FAIL"
			failed++
			if f.Err != "" {
				detail = f.Err
			}
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", status, f.Name, f.Selector, detail)
	}
	w.Flush()
	return failed
}

func (a *App) serveCommand() *cobra.Command {
	var (
		addr      string
		noPromo   bool
		noCookies bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fixture storefront",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shop, err := storefront.New(nil,
				storefront.WithLogger(a.logger),
				storefront.WithPromo(!noPromo),
				storefront.WithCookieBanner(!noCookies),
			)
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: shop, ReadHeaderTimeout: 10 * time.Second}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			a.logger.Infof("Fixture storefront listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve storefront: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().BoolVar(&noPromo, "no-promo", false, "Hide the promotional iframe")
	cmd.Flags().BoolVar(&noCookies, "no-cookies", false, "Hide the cookie banner")
	return cmd
}

func (a *App) historyCommand() *cobra.Command {
	var (
		limit    int
		scenName string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.store.List()
			if err != nil {
				return err
			}
			if scenName != "" {
				kept := records[:0]
				for _, r := range records {
					if r.Scenario == scenName {
						kept = append(kept, r)
					}
				}
				records = kept
			}
			sort.SliceStable(records, func(i, j int) bool { return records[i].StartedAt.After(records[j].StartedAt) })
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSCENARIO\tDRIVER\tSTATUS\tSTEPS\tID")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.Scenario, r.Driver, r.Status, len(r.Steps), r.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to print (0 for all)")
	cmd.Flags().StringVar(&scenName, "scenario", "", "Only print runs of this scenario")
	return cmd
}
