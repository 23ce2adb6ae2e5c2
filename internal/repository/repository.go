// Package repository defines the persistence contracts for campaigns.
package repository

import (
	"context"

	"github.com/smartcycle/discounts/internal/domain"
)

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// CampaignRepository persists campaigns and their conditions as a
// unit.
//
// Update and UpdateStatus use compare-and-swap on the campaign's
// version: the write succeeds only when the stored version still
// equals the version the caller loaded, and the stored version is
// incremented as part of the same statement. A lost race surfaces as
// pkg/errors.ErrConcurrentModification.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.Campaign, error)
	Update(ctx context.Context, campaign *domain.Campaign) error
	UpdateStatus(ctx context.Context, id, status string, expectedVersion uint64) error

	// UpdateCompiled stores a compiled selection without bumping the
	// version: compilation derives from configuration, it is not a
	// configuration write. The write lands only while the row still
	// holds the version the set was compiled from, so a result from a
	// superseded configuration is discarded.
	UpdateCompiled(ctx context.Context, id string, compiled *domain.CompiledSelection, sourceVersion uint64) error

	Delete(ctx context.Context, id string) error
}
