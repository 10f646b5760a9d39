package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopfront-dev/apiclient"
)

// CacheTag groups every cached product listing.
const CacheTag = "products"

// FeaturedRevalidate is how long the featured listing stays cached.
const FeaturedRevalidate = 60 * time.Second

// Error is returned when a catalog call fails. It wraps the client failure.
type Error struct {
	Op  string
	Err *apiclient.APIError
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s: %d %s", e.Op, e.Err.StatusCode(), e.Err.Message())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Query filters and paginates a product search.
type Query struct {
	Q         string
	PageIndex int
	PageSize  int
}

func (q Query) encode() string {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.PageIndex > 0 {
		v.Set("pageIndex", strconv.Itoa(q.PageIndex))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Service talks to the /products endpoints.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

// Featured returns the featured product listing.
func (s *Service) Featured(ctx context.Context) ([]Product, error) {
	res := apiclient.Get[Page](ctx, s.client, "/products",
		apiclient.WithCache(apiclient.CacheOptions{Revalidate: FeaturedRevalidate, Tags: []string{CacheTag}}))
	if !res.OK() {
		return nil, &Error{Op: "fetch products", Err: res.Err()}
	}
	return res.Value().Data, nil
}

// Search returns one page of products matching q.
func (s *Service) Search(ctx context.Context, q Query) (Page, error) {
	res := apiclient.Get[Page](ctx, s.client, "/products"+q.encode(),
		apiclient.WithCache(apiclient.CacheOptions{Tags: []string{CacheTag}}))
	if !res.OK() {
		return Page{}, &Error{Op: "search products", Err: res.Err()}
	}
	return res.Value(), nil
}

// Create adds a product and drops every cached listing.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	res := apiclient.Post[Product](ctx, s.client, "/products", p)
	if !res.OK() {
		return Product{}, &Error{Op: "create product", Err: res.Err()}
	}
	s.client.InvalidateTags(CacheTag)
	return res.Value(), nil
}
