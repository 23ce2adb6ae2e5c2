// Package postgres implements campaign persistence on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smartcycle/discounts/internal/domain"
	"github.com/smartcycle/discounts/internal/repository"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CampaignRepository is a PostgreSQL-backed repository.CampaignRepository.
type CampaignRepository struct {
	db DB
}

// NewCampaignRepository creates a campaign repository over the given
// connection pool.
func NewCampaignRepository(db DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

const campaignColumns = `id, name, description, status, priority, selection_mode,
		explicit_item_ids, random_count, condition_logic, conditions,
		start_date, end_date, recurrence, discount_spec, version, compiled,
		created_at, updated_at`

func (r *CampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	if campaign.Version == 0 {
		campaign.Version = 1
	}

	row, err := encodeCampaign(campaign)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO campaigns (` + campaignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.Exec(ctx, query,
		campaign.ID, campaign.Name, campaign.Description, campaign.Status, campaign.Priority,
		campaign.SelectionMode, row.explicitItemIDs, campaign.RandomCount, campaign.ConditionLogic,
		row.conditions, row.startDate, campaign.Window.EndDate, row.recurrence,
		row.discountSpec, campaign.Version, row.compiled, campaign.CreatedAt, campaign.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("campaign", "id", campaign.ID)
		}
		return fmt.Errorf("inserting campaign %s: %w", campaign.ID, err)
	}
	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	campaign, err := scanCampaign(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("campaign", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading campaign %s: %w", id, err)
	}
	return campaign, nil
}

func (r *CampaignRepository) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []any{}

	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY priority DESC, id ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	defer rows.Close()

	var out []*domain.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning campaign row: %w", err)
		}
		out = append(out, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating campaign rows: %w", err)
	}
	return out, nil
}

// Update rewrites every mutable field, gated on the version the caller
// loaded. On success campaign.Version reflects the stored value.
func (r *CampaignRepository) Update(ctx context.Context, campaign *domain.Campaign) error {
	expected := campaign.Version
	campaign.UpdatedAt = time.Now().UTC()

	row, err := encodeCampaign(campaign)
	if err != nil {
		return err
	}

	query := `
		UPDATE campaigns
		SET name = $1, description = $2, status = $3, priority = $4,
			selection_mode = $5, explicit_item_ids = $6, random_count = $7,
			condition_logic = $8, conditions = $9, start_date = $10,
			end_date = $11, recurrence = $12, discount_spec = $13,
			compiled = $14, version = version + 1, updated_at = $15
		WHERE id = $16 AND version = $17`

	tag, err := r.db.Exec(ctx, query,
		campaign.Name, campaign.Description, campaign.Status, campaign.Priority,
		campaign.SelectionMode, row.explicitItemIDs, campaign.RandomCount,
		campaign.ConditionLogic, row.conditions, row.startDate, campaign.Window.EndDate,
		row.recurrence, row.discountSpec, row.compiled, campaign.UpdatedAt,
		campaign.ID, expected)
	if err != nil {
		return fmt.Errorf("updating campaign %s: %w", campaign.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.casFailure(ctx, campaign.ID, expected)
	}

	campaign.Version = expected + 1
	return nil
}

// UpdateStatus moves only the status column, with the same
// compare-and-swap discipline as Update.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id, status string, expectedVersion uint64) error {
	query := `
		UPDATE campaigns
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`

	tag, err := r.db.Exec(ctx, query, status, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("updating campaign %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.casFailure(ctx, id, expectedVersion)
	}
	return nil
}

// UpdateCompiled writes the compiled column while the row still holds
// the version the set was compiled from. A superseded result is
// reported as a concurrent modification so the caller can drop it.
func (r *CampaignRepository) UpdateCompiled(ctx context.Context, id string, compiled *domain.CompiledSelection, sourceVersion uint64) error {
	raw, err := json.Marshal(compiled)
	if err != nil {
		return fmt.Errorf("encoding compiled selection: %w", err)
	}

	query := `
		UPDATE campaigns
		SET compiled = $1, updated_at = $2
		WHERE id = $3 AND version = $4`

	tag, err := r.db.Exec(ctx, query, raw, time.Now().UTC(), id, sourceVersion)
	if err != nil {
		return fmt.Errorf("updating campaign %s compiled selection: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.casFailure(ctx, id, sourceVersion)
	}
	return nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting campaign %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("campaign", id)
	}
	return nil
}

// casFailure distinguishes a lost version race from a vanished row.
func (r *CampaignRepository) casFailure(ctx context.Context, id string, expected uint64) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking campaign %s after conflicting write: %w", id, err)
	}
	if !exists {
		return apperrors.NotFound("campaign", id)
	}
	return apperrors.ConcurrentModification("campaign", id, expected)
}

// encodedRow carries the JSONB-encoded columns of a campaign.
type encodedRow struct {
	explicitItemIDs []byte
	conditions      []byte
	recurrence      []byte
	discountSpec    []byte
	compiled        []byte
	startDate       *time.Time
}

func encodeCampaign(c *domain.Campaign) (*encodedRow, error) {
	row := &encodedRow{}
	var err error

	if row.explicitItemIDs, err = json.Marshal(c.ExplicitItemIDs); err != nil {
		return nil, fmt.Errorf("encoding explicit item ids: %w", err)
	}
	if row.conditions, err = json.Marshal(c.Conditions); err != nil {
		return nil, fmt.Errorf("encoding conditions: %w", err)
	}
	if c.Window.Recurrence != nil {
		if row.recurrence, err = json.Marshal(c.Window.Recurrence); err != nil {
			return nil, fmt.Errorf("encoding recurrence rule: %w", err)
		}
	}
	if len(c.DiscountSpec) > 0 {
		row.discountSpec = []byte(c.DiscountSpec)
	}
	if c.Compiled != nil {
		if row.compiled, err = json.Marshal(c.Compiled); err != nil {
			return nil, fmt.Errorf("encoding compiled selection: %w", err)
		}
	}
	if !c.Window.StartDate.IsZero() {
		start := c.Window.StartDate
		row.startDate = &start
	}
	return row, nil
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var (
		c               domain.Campaign
		explicitItemIDs []byte
		conditions      []byte
		recurrence      []byte
		discountSpec    []byte
		compiled        []byte
		startDate       *time.Time
	)

	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.Status, &c.Priority, &c.SelectionMode,
		&explicitItemIDs, &c.RandomCount, &c.ConditionLogic, &conditions,
		&startDate, &c.Window.EndDate, &recurrence, &discountSpec, &c.Version,
		&compiled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(explicitItemIDs) > 0 {
		if err := json.Unmarshal(explicitItemIDs, &c.ExplicitItemIDs); err != nil {
			return nil, fmt.Errorf("decoding explicit item ids: %w", err)
		}
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &c.Conditions); err != nil {
			return nil, fmt.Errorf("decoding conditions: %w", err)
		}
	}
	if len(recurrence) > 0 {
		c.Window.Recurrence = &domain.RecurrenceRule{}
		if err := json.Unmarshal(recurrence, c.Window.Recurrence); err != nil {
			return nil, fmt.Errorf("decoding recurrence rule: %w", err)
		}
	}
	if len(discountSpec) > 0 {
		c.DiscountSpec = json.RawMessage(discountSpec)
	}
	if len(compiled) > 0 {
		c.Compiled = &domain.CompiledSelection{}
		if err := json.Unmarshal(compiled, c.Compiled); err != nil {
			return nil, fmt.Errorf("decoding compiled selection: %w", err)
		}
	}
	if startDate != nil {
		c.Window.StartDate = *startDate
	}
	return &c, nil
}
