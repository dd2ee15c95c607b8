package api

import (
	"context"
	"fmt"

	"github.com/dvcrn/adboard/internal/client"
)

type CategoriesService struct {
	client *client.Client
}

func (s *CategoriesService) List(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := s.client.Do(ctx, client.Get(categoriesPath, nil), &categories); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
