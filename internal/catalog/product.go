// Package catalog is the product service of the storefront backend API,
// built on apiclient.
package catalog

import "time"

// Product status values reported by the backend.
const (
	StatusOnSale     = "販売中"
	StatusOutOfStock = "在庫切れ"
	StatusPrivate    = "非公開"
)

// Product is a catalog item.
type Product struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description []DescriptionBlock `json:"description"`
	Price       float64            `json:"price"`
	Stock       int                `json:"stock"`
	Status      string             `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	Category    *Category          `json:"category"`
	Brand       *Brand             `json:"brand"`
	Images      []Image            `json:"images"`
}

// ImageURL returns the URL of the first image by order, or "".
func (p Product) ImageURL() string {
	url, best := "", 0
	for i, img := range p.Images {
		if i == 0 || img.Order < best {
			url, best = img.URL, img.Order
		}
	}
	return url
}

// DescriptionBlock is one block of rich product text. Content is a string
// for paragraphs and headings and a list of strings for lists.
type DescriptionBlock struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

type Brand struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Parent      *Category `json:"parent,omitempty"`
}

type Image struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Order int    `json:"order"`
}

// Page is one page of a product listing.
type Page struct {
	Data []Product `json:"data"`
	Meta PageMeta  `json:"meta"`
}

type PageMeta struct {
	PageCount int `json:"pageCount"`
}
