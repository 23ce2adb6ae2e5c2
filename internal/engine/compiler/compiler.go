// Package compiler turns a campaign's selection configuration into a
// concrete compiled item-id set.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/smartcycle/discounts/internal/catalog"
	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/engine/eval"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// Warning is a non-fatal observation recorded during compilation, such
// as explicit item ids that no longer resolve in the catalog.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	WarnDroppedItems = "DROPPED_ITEMS"
	WarnEmptyResult  = "EMPTY_RESULT"
)

// Compiler compiles selections against a catalog.
type Compiler struct {
	catalog catalog.Catalog
	logger  *slog.Logger
}

// New creates a selection compiler.
func New(cat catalog.Catalog, logger *slog.Logger) *Compiler {
	return &Compiler{catalog: cat, logger: logger}
}

// Compile resolves the campaign's selection into a compiled set. The
// returned record carries the campaign version it was built from, so
// readers can detect staleness.
//
// Catalog failures and context cancellation surface as a compilation
// error; they never degrade into a broader match than configured. An
// empty result is a valid outcome, reported through warnings.
func (c *Compiler) Compile(ctx context.Context, campaign *domain.Campaign) (*domain.CompiledSelection, []Warning, error) {
	start := time.Now()

	var (
		itemIDs  []string
		warnings []Warning
		dropped  int
		err      error
	)

	switch campaign.SelectionMode {
	case domain.SelectionModeAllItems:
		itemIDs, err = c.compileAllItems(ctx)
	case domain.SelectionModeExplicitList:
		itemIDs, dropped, err = c.compileExplicitList(ctx, campaign.ExplicitItemIDs)
		if dropped > 0 {
			warnings = append(warnings, Warning{
				Code:    WarnDroppedItems,
				Message: fmt.Sprintf("%d configured item(s) no longer resolve in the catalog", dropped),
			})
		}
	case domain.SelectionModeRandomN:
		itemIDs, err = c.compileRandomN(ctx, campaign)
	case domain.SelectionModeConditionFiltered:
		itemIDs, err = c.compileConditionFiltered(ctx, campaign)
	default:
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("unknown selection mode %q", campaign.SelectionMode))
	}

	compilationDuration.WithLabelValues(campaign.SelectionMode).Observe(time.Since(start).Seconds())
	if err != nil {
		compilationsTotal.WithLabelValues(campaign.SelectionMode, "error").Inc()
		return nil, warnings, err
	}
	compilationsTotal.WithLabelValues(campaign.SelectionMode, "ok").Inc()
	compiledSetSize.WithLabelValues(campaign.SelectionMode).Observe(float64(len(itemIDs)))

	if len(itemIDs) == 0 {
		warnings = append(warnings, Warning{
			Code:    WarnEmptyResult,
			Message: "selection compiled to an empty item set",
		})
		c.logger.InfoContext(ctx, "selection compiled empty",
			slog.String("campaign_id", campaign.ID),
			slog.String("selection_mode", campaign.SelectionMode))
	}

	return &domain.CompiledSelection{
		ItemIDs:          itemIDs,
		CompiledAt:       time.Now().UTC(),
		SourceVersion:    campaign.Version,
		Method:           campaign.SelectionMode,
		DroppedItemCount: dropped,
	}, warnings, nil
}

func (c *Compiler) compileAllItems(ctx context.Context) ([]string, error) {
	items, err := c.listItems(ctx)
	if err != nil {
		return nil, err
	}
	return itemIDs(items), nil
}

func (c *Compiler) compileExplicitList(ctx context.Context, configured []string) ([]string, int, error) {
	resolved := make([]string, 0, len(configured))
	dropped := 0

	for _, id := range configured {
		if err := ctx.Err(); err != nil {
			return nil, 0, apperrors.CompilationFailed(err)
		}

		_, err := c.catalog.ResolveItem(ctx, id)
		switch {
		case err == nil:
			resolved = append(resolved, id)
		case errors.Is(err, apperrors.ErrNotFound):
			dropped++
		default:
			return nil, 0, apperrors.CompilationFailed(err)
		}
	}
	return resolved, dropped, nil
}

func (c *Compiler) compileRandomN(ctx context.Context, campaign *domain.Campaign) ([]string, error) {
	candidates, err := c.candidateItems(ctx, campaign)
	if err != nil {
		return nil, err
	}

	n := campaign.RandomCount
	if n > len(candidates) {
		n = len(candidates)
	}
	if n <= 0 {
		return []string{}, nil
	}

	// Reseed per compilation so rotating-sample campaigns actually
	// rotate across recompiles.
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	return itemIDs(candidates[:n]), nil
}

func (c *Compiler) compileConditionFiltered(ctx context.Context, campaign *domain.Campaign) ([]string, error) {
	if err := validateConditions(campaign.Conditions); err != nil {
		return nil, err
	}
	if len(campaign.Conditions) == 0 {
		// An empty filter matches nothing, never the whole catalog.
		return []string{}, nil
	}

	items, err := c.listItems(ctx)
	if err != nil {
		return nil, err
	}

	matched := eval.Filter(items, campaign.Conditions, campaign.ConditionLogic)
	return itemIDs(matched), nil
}

// candidateItems returns the base candidate set for sampling modes:
// the condition-filtered catalog when conditions are configured,
// otherwise the full catalog.
func (c *Compiler) candidateItems(ctx context.Context, campaign *domain.Campaign) ([]catalog.Item, error) {
	if err := validateConditions(campaign.Conditions); err != nil {
		return nil, err
	}

	items, err := c.listItems(ctx)
	if err != nil {
		return nil, err
	}
	if len(campaign.Conditions) == 0 {
		return items, nil
	}
	return eval.Filter(items, campaign.Conditions, campaign.ConditionLogic), nil
}

// validateConditions rejects the whole set when any single condition
// fails validation. Evaluating a partial condition list could widen an
// `all` filter up to the full catalog, so an unusable condition always
// invalidates the compilation rather than being skipped.
func validateConditions(conditions []domain.Condition) error {
	for i, cond := range conditions {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *Compiler) listItems(ctx context.Context) ([]catalog.Item, error) {
	items, err := c.catalog.ListItems(ctx)
	if err != nil {
		return nil, apperrors.CompilationFailed(fmt.Errorf("listing catalog items: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.CompilationFailed(err)
	}
	return items, nil
}

func itemIDs(items []catalog.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
