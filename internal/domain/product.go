package domain

// ProviderProductImage is a normalized product image.
type ProviderProductImage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position,omitempty"`
}

// ProviderCategory is a normalized product category. Shopify custom
// collections map onto this shape.
type ProviderCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// ProviderProduct is the normalized projection of a provider's native product
// response. Description is HTML-stripped.
type ProviderProduct struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	SKU         string                 `json:"sku,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Images      []ProviderProductImage `json:"images,omitempty"`
	Categories  []ProviderCategory     `json:"categories,omitempty"`
}

// ProductListOptions control catalog pagination and filtering.
type ProductListOptions struct {
	Page    int    `json:"page,omitempty"`
	PerPage int    `json:"per_page,omitempty"`
	Search  string `json:"search,omitempty"`
	Status  string `json:"status,omitempty"`
}

// ProductPage is one page of normalized products plus pagination totals.
type ProductPage struct {
	Products   []ProviderProduct `json:"products"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
}
