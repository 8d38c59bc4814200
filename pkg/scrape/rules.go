package scrape

import "strings"

// target identifies a page element: a CSS query plus an optional attribute
// to read instead of the element text.
type target struct {
	query string
	attr  string
}

// Rule describes how to pull a price observation out of one shop's markup.
type Rule struct {
	Store       string
	Price       []target
	Title       []target
	Unavailable []string // phrases that mark the product out of stock
}

// defaultRule covers the common e-commerce markup conventions; it is the
// fallback for any shop without a dedicated rule.
var defaultRule = Rule{
	Price: []target{
		{query: `meta[property="product:price:amount"]`, attr: "content"},
		{query: `meta[itemprop="price"]`, attr: "content"},
		{query: `[itemprop="price"]`},
		{query: `#price`},
		{query: `.product-price .price`},
		{query: `.price`},
	},
	Title: []target{
		{query: `meta[property="og:title"]`, attr: "content"},
		{query: `h1.product-name`},
		{query: `h2.product-name`},
		{query: `h1`},
	},
	Unavailable: []string{"out of stock", "sold out", "currently unavailable", "agotado"},
}

// rules maps a shop's host (without the www. prefix) to its extraction rule.
var rules = map[string]Rule{
	"amazon.com": {
		Store: "amazon",
		Price: []target{
			{query: `#priceblock_ourprice`},
			{query: `.a-price .a-offscreen`},
		},
		Title:       []target{{query: `#productTitle`}},
		Unavailable: []string{"currently unavailable"},
	},
	"ebay.com": {
		Store: "ebay",
		Price: []target{
			{query: `.x-price-primary .ux-textspans`},
			{query: `#prcIsum`},
		},
		Title: []target{{query: `.x-item-title__mainTitle`}},
	},
	"books.toscrape.com": {
		Store: "books.toscrape",
		Price: []target{{query: `.product_main .price_color`}},
		Title: []target{{query: `.product_main h1`}},
	},
}

// RuleFor picks the extraction rule for a host.
func RuleFor(host string) Rule {
	host = hostKey(host)
	if r, ok := rules[host]; ok {
		return r
	}
	r := defaultRule
	r.Store = host
	return r
}

func hostKey(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}
