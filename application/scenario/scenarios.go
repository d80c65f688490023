package scenario

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"shopflow/application/element"
	"shopflow/application/pages"
	"shopflow/domain/errs"
)

// Params is the test data shared by the built-in scenarios.
type Params struct {
	ListingPath  string
	Product      string
	SearchTerm   string
	Size         string
	TitleTimeout time.Duration
	// MenuTarget must appear in the URL after the header menu flow.
	MenuTarget string
}

// DefaultParams returns the data used against the fixture storefront.
func DefaultParams() Params {
	return Params{
		ListingPath:  "/shop/snowboards",
		Product:      "Lib Technologies Skate Banana Snowboard - 2025",
		SearchTerm:   "Skate Banana",
		Size:         pages.DefaultSize,
		TitleTimeout: 10 * time.Second,
		MenuTarget:   "pants",
	}
}

// Builtin returns the built-in scenarios sorted by name.
func Builtin(p Params) []Scenario {
	all := []Scenario{
		{
			Name:        "add-to-cart",
			Description: "Open the home page, reach snowboards from the menu, search the product and add it to the cart",
			Steps: concat(
				prepareHome(),
				[]Step{
					{Name: "go to snowboards via menu", Run: func(ctx context.Context, s *Session) error {
						home, err := s.Home()
						if err != nil {
							return err
						}
						return home.GoToSnowboardsViaMenu(ctx)
					}},
					waitForListing(element.DefaultTimeout),
					listingContains(p.Product),
				},
				searchAndAdd(p, pages.DefaultSize),
				[]Step{
					{Name: "close cart", Run: func(ctx context.Context, s *Session) error {
						boards, err := s.Snowboards()
						if err != nil {
							return err
						}
						return boards.CloseCart(ctx)
					}},
				},
			),
		},
		{
			Name:        "listing-contains",
			Description: "Open the listing page and check the product is listed",
			Steps: []Step{
				openPath(p.ListingPath),
				waitForListing(p.TitleTimeout),
				listingContains(p.Product),
			},
		},
		{
			Name:        "header-menu",
			Description: "Open the home page and follow Men > Pants from the header menu",
			Steps: concat(
				prepareHome(),
				[]Step{
					{Name: "open men pants", Run: func(ctx context.Context, s *Session) error {
						home, err := s.Home()
						if err != nil {
							return err
						}
						return home.OpenMenPants(ctx)
					}},
					urlContains(p.MenuTarget),
				},
			),
		},
		{
			Name:        "storefront",
			Description: "Open the listing page, search the product, pick a size and verify the mini cart",
			Steps: concat(
				[]Step{
					openPath(p.ListingPath),
					waitForListing(p.TitleTimeout),
					listingContains(p.Product),
				},
				searchAndAdd(p, p.Size),
			),
		},
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Names returns the names of the built-in scenarios.
func Names() []string {
	var names []string
	for _, sc := range Builtin(DefaultParams()) {
		names = append(names, sc.Name)
	}
	return names
}

// Lookup returns the built-in scenario called name.
func Lookup(name string, p Params) (Scenario, error) {
	for _, sc := range Builtin(p) {
		if sc.Name == name {
			return sc, nil
		}
	}
	return Scenario{}, errs.New(errs.NotFound, fmt.Sprintf("unknown scenario %q (want one of %s)", name, strings.Join(Names(), ", ")))
}

func concat(groups ...[]Step) []Step {
	var steps []Step
	for _, g := range groups {
		steps = append(steps, g...)
	}
	return steps
}

func openPath(path string) Step {
	return Step{Name: "open " + path, Run: func(ctx context.Context, s *Session) error {
		home, err := s.Home()
		if err != nil {
			return err
		}
		return home.OpenURL(ctx, s.URL(path))
	}}
}

func prepareHome() []Step {
	return []Step{
		openPath("/"),
		{Name: "wait for home page", Run: func(ctx context.Context, s *Session) error {
			home, err := s.Home()
			if err != nil {
				return err
			}
			return home.WaitForHomePageToLoad(ctx)
		}},
		{Name: "close banner if present", Run: func(ctx context.Context, s *Session) error {
			home, err := s.Home()
			if err != nil {
				return err
			}
			return home.CloseBannerIfPresent(ctx)
		}},
		{Name: "accept cookies if visible", Run: func(ctx context.Context, s *Session) error {
			home, err := s.Home()
			if err != nil {
				return err
			}
			return home.AcceptCookiesIfVisible(ctx)
		}},
	}
}

func waitForListing(timeout time.Duration) Step {
	return Step{Name: "wait for listing page", Run: func(ctx context.Context, s *Session) error {
		boards, err := s.Snowboards()
		if err != nil {
			return err
		}
		return boards.PageTitle().WaitForDisplayed(ctx, element.WithTimeout(timeout))
	}}
}

func listingContains(product string) Step {
	return Step{Name: "listing contains product", Run: func(ctx context.Context, s *Session) error {
		boards, err := s.Snowboards()
		if err != nil {
			return err
		}
		names, err := boards.AllSnowboardNames(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(names, product) {
			return errs.New(errs.AssertionFailed, fmt.Sprintf("product %q not among %d listed products", product, len(names)))
		}
		return nil
	}}
}

func searchAndAdd(p Params, size string) []Step {
	return []Step{
		{Name: "search product", Run: func(ctx context.Context, s *Session) error {
			home, err := s.Home()
			if err != nil {
				return err
			}
			return home.SearchProduct(ctx, p.SearchTerm)
		}},
		{Name: "select search suggestion", Run: func(ctx context.Context, s *Session) error {
			boards, err := s.Snowboards()
			if err != nil {
				return err
			}
			if err := boards.WaitForSearchSuggestions(ctx); err != nil {
				return err
			}
			return boards.SelectFromSearchResults(ctx, p.SearchTerm)
		}},
		{Name: "add to cart", Run: func(ctx context.Context, s *Session) error {
			boards, err := s.Snowboards()
			if err != nil {
				return err
			}
			if size == pages.DefaultSize {
				return boards.AddProductToCartFlow(ctx)
			}
			return boards.AddProductToCartWithSize(ctx, size)
		}},
		{Name: "verify product in cart", Run: func(ctx context.Context, s *Session) error {
			boards, err := s.Snowboards()
			if err != nil {
				return err
			}
			return boards.VerifyProductInCart(ctx, p.Product)
		}},
	}
}

func urlContains(fragment string) Step {
	return Step{Name: "url contains " + fragment, Run: func(ctx context.Context, s *Session) error {
		url, err := s.Driver.CurrentURL(ctx)
		if err != nil {
			return fmt.Errorf("failed to read current url: %w", err)
		}
		if !strings.Contains(strings.ToLower(url), strings.ToLower(fragment)) {
			return errs.New(errs.AssertionFailed, fmt.Sprintf("expected url to contain %q, got %q", fragment, url))
		}
		return nil
	}}
}
