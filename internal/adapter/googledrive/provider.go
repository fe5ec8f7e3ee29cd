package googledrive

import (
	"context"
	"fmt"

	"tunedrive/internal/adapter"
	"tunedrive/internal/auth"
)

// Provider implements adapter.StorageProvider for Google Drive.
type Provider struct {
	authService *auth.Service
}

// NewProvider creates a new Google Drive provider.
func NewProvider(authService *auth.Service) *Provider {
	return &Provider{authService: authService}
}

// GetAdapter returns a DriveAdapter authenticated for the archive account.
func (p *Provider) GetAdapter(ctx context.Context) (adapter.StorageAdapter, error) {
	client, err := p.authService.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	storage, err := NewDriveAdapter(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive adapter: %w", err)
	}

	return storage, nil
}
