package memory

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"tunedrive/internal/adapter"
)

// Provider implements adapter.StorageProvider for the memory adapter. The
// same adapter instance is shared across requests so the in-process map
// behaves like one store.
type Provider struct {
	adapter *MemoryAdapter
}

// NewProvider creates a memory provider. client may be nil.
func NewProvider(client *dynamodb.Client, tableName string) *Provider {
	return &Provider{adapter: NewMemoryAdapter(client, tableName)}
}

// NewProviderWithAdapter wraps an existing adapter, letting tests reach the
// underlying store directly.
func NewProviderWithAdapter(a *MemoryAdapter) *Provider {
	return &Provider{adapter: a}
}

// GetAdapter returns the shared memory adapter.
func (p *Provider) GetAdapter(ctx context.Context) (adapter.StorageAdapter, error) {
	return p.adapter, nil
}
