// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalogsync copies the shop catalog into the order desk's stores.
//
// Products are fetched page by page from the WooCommerce REST API,
// classified by the lexicon's line and format rules and written to every
// configured sink.
package catalogsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/redact"
)

const (
	// DefaultPerPage is the WooCommerce page size. 100 is the API maximum.
	DefaultPerPage = 100

	// DefaultTimeout bounds one page request.
	DefaultTimeout = 30 * time.Second

	productsPath = "/wp-json/wc/v3/products"

	// maxPages stops a misbehaving server from paging forever.
	maxPages = 1000
)

// Category is a WooCommerce product category reference.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Product is the subset of a WooCommerce product the order desk uses.
type Product struct {
	ID               int64                `json:"id"`
	Name             string               `json:"name"`
	SKU              string               `json:"sku"`
	Price            string               `json:"price"`
	StockQuantity    datatypes.StockLevel `json:"stock_quantity"`
	StockStatus      string               `json:"stock_status"`
	Categories       []Category           `json:"categories"`
	Description      string               `json:"description"`
	ShortDescription string               `json:"short_description"`
}

// Source yields every shop product.
type Source interface {
	FetchAll(ctx context.Context) ([]Product, error)
}

// WooConfig configures a WooClient.
type WooConfig struct {
	// URL is the shop root, e.g. https://shop.example.ch.
	URL            string
	ConsumerKey    string
	ConsumerSecret string

	// RateLimit is the page request rate per second. 0 means unlimited.
	RateLimit float64

	Timeout time.Duration
	PerPage int
}

// WooClient reads products from the WooCommerce REST API (wc/v3).
//
// # Description
//
// Pages are requested with per_page and status=any until an empty page is
// returned. Any non-200 page fails the whole fetch: a partial catalog would
// silently drop products from the stores.
//
// # Thread Safety
//
// Safe for concurrent use.
type WooClient struct {
	baseURL string
	key     string
	secret  string
	perPage int
	client  *http.Client
	limiter *rate.Limiter
}

// NewWooClient creates a client for cfg.
func NewWooClient(cfg WooConfig) (*WooClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("woocommerce url is required")
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("woocommerce consumer key and secret are required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parse woocommerce url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &WooClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.ConsumerKey,
		secret:  cfg.ConsumerSecret,
		perPage: cfg.PerPage,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// FetchAll implements Source.
func (w *WooClient) FetchAll(ctx context.Context) ([]Product, error) {
	var all []Product
	for page := 1; page <= maxPages; page++ {
		products, err := w.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(products) == 0 {
			return all, nil
		}
		all = append(all, products...)
	}
	return nil, fmt.Errorf("woocommerce: more than %d pages", maxPages)
}

func (w *WooClient) fetchPage(ctx context.Context, page int) ([]Product, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(w.perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("status", "any")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+productsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create products request: %w", err)
	}
	req.SetBasicAuth(w.key, w.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("woocommerce page %d: %w", page, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read woocommerce page %d: %w", page, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("woocommerce page %d returned %d: %s", page, resp.StatusCode, redact.String(truncate(string(body), 200)))
	}

	var products []Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("parse woocommerce page %d: %w", page, err)
	}
	return products, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
