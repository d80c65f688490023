package pages

import (
	"context"
	"testing"
	"time"

	"shopflow/application/pageobject"
	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/infrastructure/browser/fakedriver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productName = "Lib Technologies Skate Banana Snowboard - 2025"

type fakeShop struct {
	d          *fakedriver.Driver
	alert      *fakedriver.Element
	cartTab    *fakedriver.Element
	cartName   *fakedriver.Element
	sizePicked bool
	addClicks  int
}

// newFakeShop seeds the selectors of both pages with a minimal interactive model.
func newFakeShop(t *testing.T) *fakeShop {
	t.Helper()
	s := &fakeShop{d: fakedriver.New()}
	d := s.d
	flat := pageobject.Flatten(SnowboardsSelectors)

	d.Set(flat["pageTitle"], fakedriver.NewElement("Snowboards"))

	var brands []*fakedriver.Element
	for _, p := range [][2]string{
		{"Burton", "Custom Snowboard - 2025"},
		{"Lib Technologies", "Skate Banana Snowboard - 2025"},
	} {
		brand := fakedriver.NewElement(p[0])
		card := fakedriver.NewElement("")
		card.SetChildren(flat["productBrand"], brand)
		card.SetChildren(flat["productModel"], fakedriver.NewElement(p[1]))
		brands = append(brands, brand)
	}
	d.Set(flat["productBrand"], brands...)

	s.alert = fakedriver.NewElement("Please select a size")
	s.alert.Displayed = false
	d.Set(flat["sizeErrorAlert"], s.alert)

	s.cartTab = fakedriver.NewElement("Cart")
	s.cartTab.Displayed = false
	s.cartName = fakedriver.NewElement(productName)
	s.cartName.Displayed = false
	d.Set(flat["miniCartTab"], s.cartTab)
	d.Set(flat["cartProductName"], s.cartName)

	add := fakedriver.NewElement("Add to Cart")
	add.OnClick = func() {
		s.addClicks++
		if !s.sizePicked {
			s.alert.Displayed = true
			return
		}
		s.cartTab.Displayed = true
		s.cartName.Displayed = true
	}
	d.Set(flat["addToCartBtn"], add)

	size := fakedriver.NewElement("154cm")
	size.OnClick = func() {
		s.sizePicked = true
		s.alert.Displayed = false
	}
	d.Set(flat["sizeOption154"], size)

	closeCart := fakedriver.NewElement("Close")
	closeCart.OnClick = func() {
		s.cartTab.Displayed = false
		s.cartName.Displayed = false
	}
	d.Set(flat["closeCartBtn"], closeCart)

	return s
}

func TestSelectorMapsInstallWithoutCollisions(t *testing.T) {
	for name, m := range map[string]entities.SelectorMap{"home": HomeSelectors, "snowboards": SnowboardsSelectors} {
		_, err := pageobject.Install(fakedriver.New(), m)
		assert.NoError(t, err, name)
	}
}

func TestAccessorsMatchInstalledNames(t *testing.T) {
	d := fakedriver.New()
	home, err := NewHome(d)
	require.NoError(t, err)
	for _, h := range []interface{ Name() string }{
		home.SiteLogo(), home.SearchBar(), home.AcceptCookiesBtn(), home.SkiAndSnowboardMenu(),
		home.SnowboardsLink(), home.HeaderMenuMen(), home.HeaderMenuMenOpen(), home.HeaderMenuMenPants(),
		home.DiscountIframe(), home.CloseBannerBtn(),
	} {
		assert.NotEmpty(t, h.Name())
	}

	boards, err := NewSnowboards(d)
	require.NoError(t, err)
	assert.Len(t, boards.Getters().Names(), 10)
	assert.NotSame(t, boards.PageTitle(), boards.PageTitle())
}

func TestSnowboards_AllSnowboardNames(t *testing.T) {
	s := newFakeShop(t)
	page, err := NewSnowboards(s.d)
	require.NoError(t, err)

	require.NoError(t, page.WaitForPageToLoad(context.Background()))
	names, err := page.AllSnowboardNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Burton Custom Snowboard - 2025", productName}, names)
}

func TestSnowboards_AddProductToCartFlow(t *testing.T) {
	ctx := context.Background()
	s := newFakeShop(t)
	page, err := NewSnowboards(s.d)
	require.NoError(t, err)

	require.NoError(t, page.AddProductToCartFlow(ctx))
	assert.Equal(t, 2, s.addClicks)
	assert.True(t, s.sizePicked)

	require.NoError(t, page.VerifyProductInCart(ctx, productName))

	err = page.VerifyProductInCart(ctx, "Burton Custom Snowboard - 2025")
	require.Error(t, err)
	assert.Equal(t, errs.AssertionFailed, errs.CodeOf(err))

	require.NoError(t, page.CloseCart(ctx))
	displayed, err := page.MiniCartTab().IsDisplayed(ctx)
	require.NoError(t, err)
	assert.False(t, displayed)
}

func TestSnowboards_AddProductToCartWithSize(t *testing.T) {
	s := newFakeShop(t)
	page, err := NewSnowboards(s.d)
	require.NoError(t, err)
	require.NoError(t, page.AddProductToCartWithSize(context.Background(), "154cm"))
	assert.True(t, s.sizePicked)
}

func TestSnowboards_SelectFromSearchResults(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	clicked := false
	suggestion := fakedriver.NewElement("Lib Technologies Skate Banana Snowboard - 2025")
	suggestion.OnClick = func() { clicked = true }
	d.Set(SuggestionSelector("Skate Banana"), suggestion)
	d.Set(pageobject.Flatten(SnowboardsSelectors)["searchResults"], fakedriver.NewElement(""))

	page, err := NewSnowboards(d)
	require.NoError(t, err)
	require.NoError(t, page.WaitForSearchSuggestions(ctx))
	require.NoError(t, page.SelectFromSearchResults(ctx, "Skate Banana"))
	assert.True(t, clicked)
}

func TestHome_SearchAndMenu(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	flat := pageobject.Flatten(HomeSelectors)
	input := fakedriver.NewElement("")
	d.Set(flat["searchBar"], input)

	var opened []string
	for _, name := range []string{"skiAndSnowboardMenu", "snowboardsLink", "headerMenu_Men", "headerMenu_Men_OpenPants"} {
		el := fakedriver.NewElement(name)
		n := name
		el.OnClick = func() { opened = append(opened, n) }
		d.Set(flat[name], el)
	}
	d.Set(flat["headerMenu_Men_Open"], fakedriver.NewElement(""))

	home, err := NewHome(d)
	require.NoError(t, err)
	require.NoError(t, home.SearchProduct(ctx, "Skate Banana"))
	require.NoError(t, home.GoToSnowboardsViaMenu(ctx))
	require.NoError(t, home.OpenMenPants(ctx))

	d.Update(func() { assert.Equal(t, "Skate Banana", input.Value) })
	assert.Equal(t, []string{"skiAndSnowboardMenu", "snowboardsLink", "headerMenu_Men", "headerMenu_Men_OpenPants"}, opened)
}

func TestHome_AcceptCookiesIfVisible(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	home, err := NewHome(d)
	require.NoError(t, err)

	require.NoError(t, home.AcceptCookiesIfVisible(ctx))
	assert.Empty(t, d.Ops(), "no click without a banner")

	accepted := false
	btn := fakedriver.NewElement("Accept")
	btn.OnClick = func() { accepted = true }
	d.Set(pageobject.Flatten(HomeSelectors)["acceptCookiesBtn"], btn)

	require.NoError(t, home.AcceptCookiesIfVisible(ctx))
	assert.True(t, accepted)
}

func TestHome_CloseBannerIfPresent(t *testing.T) {
	ctx := context.Background()
	d := fakedriver.New()
	flat := pageobject.Flatten(HomeSelectors)

	closed := false
	closeBtn := fakedriver.NewElement("x")
	closeBtn.OnClick = func() { closed = true }
	iframe := fakedriver.NewElement("")
	iframe.SetFrameContent(flat["closeBannerBtn"], closeBtn)
	d.Set(flat["discountIframe"], iframe)

	home, err := NewHome(d)
	require.NoError(t, err)
	require.NoError(t, home.CloseBannerIfPresent(ctx))

	assert.True(t, closed)
	assert.Zero(t, d.FrameDepth())
}

func TestHome_CloseBannerIfPresent_NoBanner(t *testing.T) {
	d := fakedriver.New()
	home, err := NewHome(d)
	require.NoError(t, err)
	home.bannerTimeout = 20 * time.Millisecond

	require.NoError(t, home.CloseBannerIfPresent(context.Background()))
	assert.NotContains(t, d.Ops(), "frame")
}

func TestHome_CloseBannerLeavesFrameOnFailure(t *testing.T) {
	d := fakedriver.New()
	flat := pageobject.Flatten(HomeSelectors)
	iframe := fakedriver.NewElement("")
	iframe.SetFrameContent("#somethingElse", fakedriver.NewElement(""))
	d.Set(flat["discountIframe"], iframe)

	home, err := NewHome(d)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.Error(t, home.CloseBannerIfPresent(ctx))
	assert.Zero(t, d.FrameDepth())
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, `"Skate Banana"`, xpathLiteral("Skate Banana"))
	assert.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))
	assert.Equal(t, `concat("a", '"', "b's")`, xpathLiteral(`a"b's`))
	assert.Equal(t, entities.Selector(`//*[text()="154cm"]/..`), SizeOptionSelector(DefaultSize))
}
