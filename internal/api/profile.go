package api

import (
	"context"
	"fmt"

	"github.com/dvcrn/adboard/internal/auth"
	"github.com/dvcrn/adboard/internal/client"
)

type ProfileService struct {
	client *client.Client
}

// Me returns the signed-in member.
func (s *ProfileService) Me(ctx context.Context) (*auth.Member, error) {
	var m auth.Member
	if err := s.client.Do(ctx, client.Get(profilePath, nil), &m); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &m, nil
}

func (s *ProfileService) Update(ctx context.Context, in ProfileUpdate) (*auth.Member, error) {
	if err := s.client.Validate(in); err != nil {
		return nil, err
	}
	var m auth.Member
	if err := s.client.Do(ctx, client.Put(profilePath, in), &m); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &m, nil
}
