package api

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/dvcrn/adboard/internal/auth"
)

// Category slugs known to the marketplace.
const (
	CategoryCars       = "cars"
	CategoryRealEstate = "real_estate"
)

// Ordering values accepted by the ads listing.
const (
	OrderNewest   = "-created_at"
	OrderOldest   = "created_at"
	OrderCheapest = "price"
	OrderPriciest = "-price"
)

// Orderings lists the accepted ordering values, newest first being the default.
func Orderings() []string {
	return []string{OrderNewest, OrderOldest, OrderCheapest, OrderPriciest}
}

type Category struct {
	ID   int64  `json:"id" yaml:"id"`
	Slug string `json:"slug" yaml:"slug"`
	Name string `json:"name" yaml:"name"`
}

// Ad is a classified listing. Price is kept as the decimal the API sends.
type Ad struct {
	ID           int64        `json:"id" yaml:"id"`
	Title        string       `json:"title" yaml:"title"`
	Description  string       `json:"description" yaml:"description"`
	Price        json.Number  `json:"price" yaml:"price"`
	Category     int64        `json:"category" yaml:"category"`
	CategoryName string       `json:"category_name,omitempty" yaml:"category_name,omitempty"`
	ContactInfo  string       `json:"contact_info" yaml:"contact_info"`
	Author       *auth.Member `json:"author,omitempty" yaml:"author,omitempty"`
	CreatedAt    time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" yaml:"updated_at"`
	IsActive     bool         `json:"is_active" yaml:"is_active"`
}

// AdFilter narrows the ads listing. Zero values are not sent.
type AdFilter struct {
	// Category is a slug or a numeric id.
	Category string   `validate:"omitempty,max=50"`
	MinPrice *float64 `validate:"omitnil,gte=0"`
	MaxPrice *float64 `validate:"omitnil,gte=0"`
	// DateFrom and DateTo are dates (2006-01-02) or RFC 3339 timestamps.
	DateFrom string `validate:"omitempty,datetime=2006-01-02|datetime=2006-01-02T15:04:05Z07:00"`
	DateTo   string `validate:"omitempty,datetime=2006-01-02|datetime=2006-01-02T15:04:05Z07:00"`
	Search   string
	Ordering string `validate:"omitempty,oneof=-created_at created_at price -price"`
}

// Values encodes the filter as query parameters.
func (f AdFilter) Values() url.Values {
	v := url.Values{}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.MinPrice != nil {
		v.Set("min_price", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		v.Set("max_price", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.DateFrom != "" {
		v.Set("date_from", f.DateFrom)
	}
	if f.DateTo != "" {
		v.Set("date_to", f.DateTo)
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Ordering != "" {
		v.Set("ordering", f.Ordering)
	}
	return v
}

// AdInput is the writable part of an ad. Nil fields are left out, so the same
// type serves creation (all fields but IsActive required) and partial updates.
type AdInput struct {
	Title       *string  `json:"title,omitempty" validate:"omitnil,min=1,max=255"`
	Description *string  `json:"description,omitempty" validate:"omitnil,min=1"`
	Price       *float64 `json:"price,omitempty" validate:"omitnil,gte=0"`
	CategoryID  *int64   `json:"category_id,omitempty" validate:"omitnil,gt=0"`
	ContactInfo *string  `json:"contact_info,omitempty" validate:"omitnil,min=1,max=255"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// missing lists the fields creation requires that are unset.
func (in AdInput) missing() []string {
	var out []string
	if in.Title == nil {
		out = append(out, "title")
	}
	if in.Description == nil {
		out = append(out, "description")
	}
	if in.Price == nil {
		out = append(out, "price")
	}
	if in.CategoryID == nil {
		out = append(out, "category_id")
	}
	if in.ContactInfo == nil {
		out = append(out, "contact_info")
	}
	return out
}

func (in AdInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.Price == nil &&
		in.CategoryID == nil && in.ContactInfo == nil && in.IsActive == nil
}

// ProfileUpdate changes the signed-in member's profile. The username is read-only.
type ProfileUpdate struct {
	Email *string `json:"email,omitempty" validate:"omitnil,email"`
	Phone *string `json:"phone,omitempty" validate:"omitnil,max=50"`
	About *string `json:"about,omitempty"`
}
