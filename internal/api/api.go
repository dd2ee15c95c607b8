// Package api exposes the marketplace endpoints on top of the authenticated client.
package api

import (
	"fmt"

	"github.com/dvcrn/adboard/internal/client"
)

const (
	adsPath        = "/api/ads/"
	myAdsPath      = "/api/my/ads/"
	categoriesPath = "/api/categories/"
	profilePath    = "/api/profile/me/"
)

// API groups the marketplace services.
type API struct {
	Ads        *AdsService
	Categories *CategoriesService
	Profile    *ProfileService
}

func New(c *client.Client) *API {
	return &API{
		Ads:        &AdsService{client: c},
		Categories: &CategoriesService{client: c},
		Profile:    &ProfileService{client: c},
	}
}

func adPath(id int64) string {
	return fmt.Sprintf("%s%d/", adsPath, id)
}

func checkID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: ad id must be positive, got %d", client.ErrInvalidInput, id)
	}
	return nil
}
