package pages

import (
	"context"
	"fmt"
	"strings"

	"shopflow/application/element"
	"shopflow/application/pageobject"
	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
)

// DefaultSize is the size picked by AddProductToCartFlow.
const DefaultSize = "154cm"

// SnowboardsSelectors are the selectors installed on the snowboards listing page.
var SnowboardsSelectors = entities.SelectorMap{
	"pageTitle": `//h1[text()="Snowboards"]`,
	"listing": entities.SelectorMap{
		"productBrand": `[data-id="brandName"]`,
		"productModel": `[data-id="title"]`,
	},
	"search": entities.SelectorMap{
		"searchResults": "#suggestions-products",
	},
	"buybox": entities.SelectorMap{
		"addToCartBtn":   `[data-id="addToCartButton"]`,
		"sizeOption154":  `//*[text()="154cm"]/..`,
		"sizeErrorAlert": "#buybox-size-error",
	},
	"miniCart": entities.SelectorMap{
		"miniCartTab":     `//*[@data-id="minicart-title"]/..`,
		"cartProductName": `[data-id="minicart-productname"]`,
		"closeCartBtn":    `[data-id="minicart-close"]`,
	},
}

// Snowboards is the product listing page with its search suggestions, buy box
// and mini cart.
type Snowboards struct {
	*pageobject.Base
}

// NewSnowboards builds the snowboards page object on driver.
func NewSnowboards(driver interfaces.Driver, opts ...pageobject.Option) (*Snowboards, error) {
	base, err := pageobject.NewBase(driver, SnowboardsSelectors, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build snowboards page: %w", err)
	}
	return &Snowboards{Base: base}, nil
}

// Element accessors. Each returns a fresh handle for the matching entry in
// SnowboardsSelectors (or its override); nothing is resolved until the handle is used.
func (p *Snowboards) PageTitle() *element.Handle       { return p.Element("pageTitle") }
func (p *Snowboards) ProductBrand() *element.Handle    { return p.Element("productBrand") }
func (p *Snowboards) ProductModel() *element.Handle    { return p.Element("productModel") }
func (p *Snowboards) SearchResults() *element.Handle   { return p.Element("searchResults") }
func (p *Snowboards) AddToCartBtn() *element.Handle    { return p.Element("addToCartBtn") }
func (p *Snowboards) SizeOption154() *element.Handle   { return p.Element("sizeOption154") }
func (p *Snowboards) SizeErrorAlert() *element.Handle  { return p.Element("sizeErrorAlert") }
func (p *Snowboards) MiniCartTab() *element.Handle     { return p.Element("miniCartTab") }
func (p *Snowboards) CartProductName() *element.Handle { return p.Element("cartProductName") }
func (p *Snowboards) CloseCartBtn() *element.Handle    { return p.Element("closeCartBtn") }

// WaitForPageToLoad waits until the page title is visible.
func (p *Snowboards) WaitForPageToLoad(ctx context.Context) error {
	return p.PageTitle().WaitForDisplayed(ctx, element.WithTimeout(element.DefaultTimeout))
}

// AllSnowboardNames returns every listed product as "Brand Model". The model
// is looked up inside the brand node's parent card.
func (p *Snowboards) AllSnowboardNames(ctx context.Context) ([]string, error) {
	brandSel := p.ProductBrand().Selector()
	modelSel := p.ProductModel().Selector()

	brands, err := p.Driver().FindAll(ctx, brandSel)
	if err != nil {
		return nil, fmt.Errorf("failed to list product brands: %w", err)
	}

	names := make([]string, 0, len(brands))
	for i, brand := range brands {
		brandText, err := brand.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read brand %d: %w", i, err)
		}
		card, err := brand.Parent(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve card of brand %d: %w", i, err)
		}
		model, err := card.Find(ctx, modelSel)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve model of brand %d: %w", i, err)
		}
		modelText, err := model.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read model %d: %w", i, err)
		}
		names = append(names, brandText+" "+modelText)
	}
	p.Log().WithField("count", len(names)).Debug("collected snowboard names")
	return names, nil
}

// WaitForSearchSuggestions waits for the live search suggestions to show.
func (p *Snowboards) WaitForSearchSuggestions(ctx context.Context) error {
	return p.SearchResults().WaitForDisplayed(ctx)
}

// SuggestionSelector returns the selector of the suggestion whose text
// contains partialName.
func SuggestionSelector(partialName string) entities.Selector {
	return entities.Selector(fmt.Sprintf(`//*[@id="suggestions-products"]//*[contains(text(),%s)]`, xpathLiteral(partialName)))
}

// SizeOptionSelector returns the clickable container of a size option.
func SizeOptionSelector(size string) entities.Selector {
	return entities.Selector(fmt.Sprintf(`//*[text()=%s]/..`, xpathLiteral(size)))
}

// SelectFromSearchResults clicks the suggestion containing partialName.
func (p *Snowboards) SelectFromSearchResults(ctx context.Context, partialName string) error {
	result, err := element.New(p.Driver(), SuggestionSelector(partialName), "searchSuggestion", element.WithLogger(p.Log()))
	if err != nil {
		return err
	}
	if err := result.WaitForDisplayed(ctx); err != nil {
		return err
	}
	return result.Click(ctx)
}

// AddProductToCartFlow adds the current product to the cart, satisfying the
// mandatory size selection with DefaultSize.
func (p *Snowboards) AddProductToCartFlow(ctx context.Context) error {
	return p.addToCart(ctx, p.SizeOption154())
}

// AddProductToCartWithSize is AddProductToCartFlow with an explicit size label.
func (p *Snowboards) AddProductToCartWithSize(ctx context.Context, size string) error {
	option, err := element.New(p.Driver(), SizeOptionSelector(size), "sizeOption", element.WithLogger(p.Log()))
	if err != nil {
		return err
	}
	return p.addToCart(ctx, option)
}

func (p *Snowboards) addToCart(ctx context.Context, sizeOption *element.Handle) error {
	if err := p.AddToCartBtn().Click(ctx); err != nil {
		return err
	}
	if err := p.SizeErrorAlert().WaitForDisplayed(ctx); err != nil {
		return err
	}
	if err := sizeOption.Click(ctx); err != nil {
		return err
	}
	if err := p.SizeErrorAlert().WaitForNotDisplayed(ctx); err != nil {
		return err
	}
	return p.AddToCartBtn().Click(ctx)
}

// VerifyProductInCart checks that the mini cart shows exactly expectedName.
func (p *Snowboards) VerifyProductInCart(ctx context.Context, expectedName string) error {
	if err := p.MiniCartTab().WaitForDisplayed(ctx); err != nil {
		return err
	}
	name := p.CartProductName()
	if err := name.WaitForDisplayed(ctx); err != nil {
		return err
	}
	actual, err := name.Text(ctx)
	if err != nil {
		return err
	}
	if actual != expectedName {
		return errs.New(errs.AssertionFailed, fmt.Sprintf("expected mini cart product %q, got %q", expectedName, actual))
	}
	return nil
}

// CloseCart closes the mini cart.
func (p *Snowboards) CloseCart(ctx context.Context) error {
	return p.CloseCartBtn().Click(ctx)
}

// xpathLiteral quotes s for use inside an XPath 1.0 expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}
