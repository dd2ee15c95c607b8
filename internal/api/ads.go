package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvcrn/adboard/internal/client"
)

type AdsService struct {
	client *client.Client
}

// List returns the ads matching filter, newest first unless Ordering says otherwise.
func (s *AdsService) List(ctx context.Context, filter AdFilter) ([]Ad, error) {
	if err := s.client.Validate(filter); err != nil {
		return nil, err
	}
	var ads []Ad
	if err := s.client.Do(ctx, client.Get(adsPath, filter.Values()), &ads); err != nil {
		return nil, fmt.Errorf("failed to list ads: %w", err)
	}
	return ads, nil
}

func (s *AdsService) Get(ctx context.Context, id int64) (*Ad, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var ad Ad
	if err := s.client.Do(ctx, client.Get(adPath(id), nil), &ad); err != nil {
		return nil, fmt.Errorf("failed to get ad %d: %w", id, err)
	}
	return &ad, nil
}

// Create publishes a new ad authored by the signed-in member.
func (s *AdsService) Create(ctx context.Context, in AdInput) (*Ad, error) {
	if missing := in.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", client.ErrInvalidInput, strings.Join(missing, ", "))
	}
	if err := s.client.Validate(in); err != nil {
		return nil, err
	}
	var ad Ad
	if err := s.client.Do(ctx, client.Post(adsPath, in), &ad); err != nil {
		return nil, fmt.Errorf("failed to create ad: %w", err)
	}
	return &ad, nil
}

// Update changes the set fields of an ad. Only the author may update it.
func (s *AdsService) Update(ctx context.Context, id int64, in AdInput) (*Ad, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, fmt.Errorf("%w: nothing to update", client.ErrInvalidInput)
	}
	if err := s.client.Validate(in); err != nil {
		return nil, err
	}
	var ad Ad
	if err := s.client.Do(ctx, client.Put(adPath(id), in), &ad); err != nil {
		return nil, fmt.Errorf("failed to update ad %d: %w", id, err)
	}
	return &ad, nil
}

func (s *AdsService) Delete(ctx context.Context, id int64) error {
	if err := checkID(id); err != nil {
		return err
	}
	if _, err := s.client.Issue(ctx, client.Delete(adPath(id))); err != nil {
		return fmt.Errorf("failed to delete ad %d: %w", id, err)
	}
	return nil
}

// Mine lists the signed-in member's ads, newest first.
func (s *AdsService) Mine(ctx context.Context) ([]Ad, error) {
	var ads []Ad
	if err := s.client.Do(ctx, client.Get(myAdsPath, nil), &ads); err != nil {
		return nil, fmt.Errorf("failed to list my ads: %w", err)
	}
	return ads, nil
}
