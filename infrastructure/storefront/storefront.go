// Package storefront serves a small, self-contained shop whose markup matches
// the selectors of the page objects, so workflows can run without the live site.
package storefront

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

// consentCookie marks an accepted cookie banner.
const consentCookie = "OptanonAlertBoxClosed"

// Product is a catalog entry.
type Product struct {
	Brand    string
	Model    string
	Slug     string
	Category string
	Sizes    []string
}

// Name is the display name shown in listings, suggestions and the mini cart.
func (p Product) Name() string { return p.Brand + " " + p.Model }

// URL is the product detail path.
func (p Product) URL() string { return "/product/" + p.Slug }

// Categories maps a category slug to its listing heading.
var Categories = map[string]string{
	"snowboards": "Snowboards",
	"mens-pants": "Men's Pants",
}

// DefaultCatalog is the seeded catalog served by the storefront.
func DefaultCatalog() []Product {
	boardSizes := []string{"150cm", "154cm", "156cm", "159cm"}
	return []Product{
		{Brand: "Burton", Model: "Custom Camber Snowboard - 2025", Slug: "burton-custom-camber-snowboard-2025", Category: "snowboards", Sizes: boardSizes},
		{Brand: "Lib Technologies", Model: "Skate Banana Snowboard - 2025", Slug: "lib-tech-skate-banana-snowboard-2025", Category: "snowboards", Sizes: boardSizes},
		{Brand: "Jones", Model: "Mountain Twin Snowboard - 2025", Slug: "jones-mountain-twin-snowboard-2025", Category: "snowboards", Sizes: boardSizes},
		{Brand: "CAPiTA", Model: "Defenders Of Awesome Snowboard - 2025", Slug: "capita-doa-snowboard-2025", Category: "snowboards", Sizes: boardSizes},
		{Brand: "GNU", Model: "Riders Choice Snowboard - 2025", Slug: "gnu-riders-choice-snowboard-2025", Category: "snowboards", Sizes: boardSizes},
		{Brand: "Patagonia", Model: "Powder Town Pants", Slug: "patagonia-powder-town-pants", Category: "mens-pants", Sizes: []string{"S", "M", "L", "XL"}},
		{Brand: "Burton", Model: "Cargo Pants", Slug: "burton-cargo-pants", Category: "mens-pants", Sizes: []string{"S", "M", "L", "XL"}},
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs every request at debug level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithPromo toggles the promotional iframe on the home page.
func WithPromo(enabled bool) Option {
	return func(s *Server) { s.promo = enabled }
}

// WithCookieBanner toggles the cookie consent banner on the home page.
func WithCookieBanner(enabled bool) Option {
	return func(s *Server) { s.cookieBanner = enabled }
}

// Server is the storefront http.Handler.
type Server struct {
	catalog      []Product
	tmpl         *template.Template
	mux          *http.ServeMux
	log          logrus.FieldLogger
	promo        bool
	cookieBanner bool
}

// New builds a storefront over catalog. An empty catalog uses DefaultCatalog.
func New(catalog []Product, opts ...Option) (*Server, error) {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse storefront templates: %w", err)
	}

	s := &Server{
		catalog:      catalog,
		tmpl:         tmpl,
		mux:          http.NewServeMux(),
		promo:        true,
		cookieBanner: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		s.log = l
	}

	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /shop/{category}", s.handleListing)
	s.mux.HandleFunc("GET /product/{slug}", s.handleProduct)
	s.mux.HandleFunc("GET /promo", s.handlePromo)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"duration": time.Since(start),
	}).Debug("storefront request")
}

// Catalog returns the served products.
func (s *Server) Catalog() []Product {
	return append([]Product(nil), s.catalog...)
}

// Product returns the product whose Name contains partial.
func (s *Server) Product(partial string) (Product, bool) {
	for _, p := range s.catalog {
		if strings.Contains(p.Name(), partial) {
			return p, true
		}
	}
	return Product{}, false
}

type suggestion struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type pageData struct {
	Title            string
	Heading          string
	Catalog          []suggestion
	Products         []Product
	Featured         []Product
	Product          Product
	ShowCookieBanner bool
	ShowPromo        bool
}

func (s *Server) data(title string) pageData {
	catalog := make([]suggestion, len(s.catalog))
	for i, p := range s.catalog {
		catalog[i] = suggestion{Name: p.Name(), URL: p.URL()}
	}
	return pageData{Title: title, Catalog: catalog}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("failed to render page")
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := s.data("Home")
	if len(s.catalog) > 3 {
		data.Featured = s.catalog[:3]
	} else {
		data.Featured = s.catalog
	}
	_, err := r.Cookie(consentCookie)
	data.ShowCookieBanner = s.cookieBanner && err != nil
	data.ShowPromo = s.promo
	s.render(w, "home", data)
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	heading, ok := Categories[category]
	if !ok {
		http.NotFound(w, r)
		return
	}
	data := s.data(heading)
	data.Heading = heading
	for _, p := range s.catalog {
		if p.Category == category {
			data.Products = append(data.Products, p)
		}
	}
	s.render(w, "listing", data)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	for _, p := range s.catalog {
		if p.Slug == slug {
			data := s.data(p.Name())
			data.Product = p
			s.render(w, "product", data)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handlePromo(w http.ResponseWriter, r *http.Request) {
	s.render(w, "promo", nil)
}
