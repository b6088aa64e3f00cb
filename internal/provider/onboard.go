package provider

import (
	"context"
	"errors"

	"navigation-platform/internal/directions"
)

// OnboardProvider is a placeholder for on-device routing over offline tiles.
// TODO: wire in the offline tile store once the tile pipeline lands.
type OnboardProvider struct {
	tilePath string
}

func NewOnboardProvider(tilePath string) *OnboardProvider {
	return &OnboardProvider{tilePath: tilePath}
}

func (p *OnboardProvider) Name() string { return "onboard" }

func (p *OnboardProvider) HealthCheck(ctx context.Context) error {
	if p.tilePath == "" {
		return errors.New("provider: onboard tile path not configured")
	}
	return nil
}

func (p *OnboardProvider) ComputeRoute(ctx context.Context, q directions.RouteQuery, creds directions.Credentials) (directions.RouteResult, error) {
	return directions.RouteResult{}, errors.New("provider: onboard routing not implemented")
}
