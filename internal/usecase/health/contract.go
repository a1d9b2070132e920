package health

import "context"

// StorePinger checks vector store availability and size.
type StorePinger interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// ProviderChecker checks an embedding or generation provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
