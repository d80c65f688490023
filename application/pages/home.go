// Package pages holds the storefront page objects.
package pages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopflow/application/element"
	"shopflow/application/pageobject"
	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
)

// HomeSelectors are the selectors installed on the home page.
var HomeSelectors = entities.SelectorMap{
	"siteLogo":         "#DesktopLogoHorizontalIcon",
	"searchBar":        "#search-term",
	"acceptCookiesBtn": "#onetrust-accept-btn-handler",
	"navigation": entities.SelectorMap{
		"skiAndSnowboardMenu":      `//*[text()="Ski & Snowboard"]`,
		"snowboardsLink":           `//*[text()="Snowboards"]`,
		"headerMenu_Men":           `//nav//*[text()="Men"]`,
		"headerMenu_Men_Open":      `[data-id="flyout-men"]`,
		"headerMenu_Men_OpenPants": `//*[@data-id="flyout-men"]//*[text()="Pants"]`,
	},
	"promo": entities.SelectorMap{
		"discountIframe": "#attentive_creative",
		"closeBannerBtn": "#closeIconContainer",
	},
}

// bannerTimeout bounds how long CloseBannerIfPresent waits for the promo iframe.
const bannerTimeout = 10 * time.Second

// Home is the storefront home page: navigation, search, banner and cookie handling.
type Home struct {
	*pageobject.Base
	bannerTimeout time.Duration
}

// NewHome builds the home page object on driver.
func NewHome(driver interfaces.Driver, opts ...pageobject.Option) (*Home, error) {
	base, err := pageobject.NewBase(driver, HomeSelectors, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build home page: %w", err)
	}
	return &Home{Base: base, bannerTimeout: bannerTimeout}, nil
}

// Element accessors. Each returns a fresh handle for the matching entry in
// HomeSelectors (or its override); nothing is resolved until the handle is used.
func (p *Home) SiteLogo() *element.Handle            { return p.Element("siteLogo") }
func (p *Home) SearchBar() *element.Handle           { return p.Element("searchBar") }
func (p *Home) AcceptCookiesBtn() *element.Handle    { return p.Element("acceptCookiesBtn") }
func (p *Home) SkiAndSnowboardMenu() *element.Handle { return p.Element("skiAndSnowboardMenu") }
func (p *Home) SnowboardsLink() *element.Handle      { return p.Element("snowboardsLink") }
func (p *Home) HeaderMenuMen() *element.Handle       { return p.Element("headerMenu_Men") }
func (p *Home) HeaderMenuMenOpen() *element.Handle   { return p.Element("headerMenu_Men_Open") }
func (p *Home) HeaderMenuMenPants() *element.Handle  { return p.Element("headerMenu_Men_OpenPants") }
func (p *Home) DiscountIframe() *element.Handle      { return p.Element("discountIframe") }
func (p *Home) CloseBannerBtn() *element.Handle      { return p.Element("closeBannerBtn") }

// WaitForHomePageToLoad waits until the site logo is visible.
func (p *Home) WaitForHomePageToLoad(ctx context.Context) error {
	return p.SiteLogo().WaitForDisplayed(ctx)
}

// AcceptCookiesIfVisible accepts the cookie consent banner when it is shown.
func (p *Home) AcceptCookiesIfVisible(ctx context.Context) error {
	btn := p.AcceptCookiesBtn()
	visible, err := btn.IsDisplayed(ctx)
	if err != nil {
		return err
	}
	if !visible {
		p.Log().Debug("cookie banner not shown")
		return nil
	}
	return btn.Click(ctx)
}

// CloseBannerIfPresent closes the promotional banner rendered inside an
// iframe. A banner that never appears is not an error.
func (p *Home) CloseBannerIfPresent(ctx context.Context) (err error) {
	frame := p.DiscountIframe()
	if err := frame.WaitForExist(ctx, element.WithTimeout(p.bannerTimeout)); err != nil {
		if errs.Is(err, errs.Timeout) {
			p.Log().Debug("promo banner not present")
			return nil
		}
		return err
	}

	if err := p.Driver().SwitchToFrame(ctx, frame.Selector()); err != nil {
		return fmt.Errorf("failed to enter promo iframe: %w", err)
	}
	defer func() {
		if perr := p.Driver().SwitchToParentFrame(ctx); perr != nil {
			err = errors.Join(err, fmt.Errorf("failed to leave promo iframe: %w", perr))
		}
	}()

	closeBtn := p.CloseBannerBtn()
	if err := closeBtn.WaitForDisplayed(ctx); err != nil {
		return err
	}
	return closeBtn.Click(ctx)
}

// GoToSnowboardsViaMenu opens "Ski & Snowboard" and follows "Snowboards".
func (p *Home) GoToSnowboardsViaMenu(ctx context.Context) error {
	if err := p.SkiAndSnowboardMenu().Click(ctx); err != nil {
		return err
	}
	return p.SnowboardsLink().Click(ctx)
}

// OpenMenPants opens the "Men" header menu and follows "Pants".
func (p *Home) OpenMenPants(ctx context.Context) error {
	if err := p.HeaderMenuMen().Click(ctx); err != nil {
		return err
	}
	if err := p.HeaderMenuMenOpen().WaitForDisplayed(ctx); err != nil {
		return err
	}
	return p.HeaderMenuMenPants().Click(ctx)
}

// SearchProduct types productName into the search bar.
func (p *Home) SearchProduct(ctx context.Context, productName string) error {
	bar := p.SearchBar()
	if err := bar.WaitForDisplayed(ctx); err != nil {
		return err
	}
	return bar.SetValue(ctx, productName)
}
