package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-pm/atrium/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for templates and charge items.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListTemplates returns templates without their lines.
func (r *Repository) ListTemplates(ctx context.Context, activeOnly bool) ([]BillTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), active
		FROM bill_templates
		WHERE NOT $1 OR active
		ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []BillTemplate
	for rows.Next() {
		var t BillTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Active); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// GetTemplate loads a template with its lines in sort order.
func (r *Repository) GetTemplate(ctx context.Context, id int64) (BillTemplate, error) {
	var t BillTemplate
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(description, ''), active FROM bill_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return BillTemplate{}, ErrTemplateNotFound
	}
	if err != nil {
		return BillTemplate{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.template_id, l.charge_item_id, COALESCE(ci.code, ''), l.required, l.sort_order, COALESCE(l.note, '')
		FROM bill_template_lines l
		LEFT JOIN charge_items ci ON ci.id = l.charge_item_id
		WHERE l.template_id = $1
		ORDER BY l.sort_order, l.id`, id)
	if err != nil {
		return BillTemplate{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var l TemplateLine
		if err := rows.Scan(&l.ID, &l.TemplateID, &l.ChargeItemID, &l.ChargeItemCode, &l.Required, &l.SortOrder, &l.Note); err != nil {
			return BillTemplate{}, err
		}
		t.Lines = append(t.Lines, l)
	}
	return t, rows.Err()
}

// TemplateInput carries the writable fields of a template and its lines.
type TemplateInput struct {
	Name        string
	Description string
	Active      bool
	Lines       []TemplateLineInput
}

// TemplateLineInput is one line of a TemplateInput.
type TemplateLineInput struct {
	ChargeItemID int64
	Required     bool
	SortOrder    int
	Note         string
}

// CreateTemplate inserts a template with its lines in one transaction.
func (r *Repository) CreateTemplate(ctx context.Context, in TemplateInput) (BillTemplate, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO bill_templates (name, description, active)
			VALUES ($1, NULLIF($2, ''), $3)
			RETURNING id`,
			in.Name, in.Description, in.Active).Scan(&id)
		if err != nil {
			return fmt.Errorf("templates: insert template: %w", err)
		}
		return insertLines(ctx, tx, id, in.Lines)
	})
	if err != nil {
		return BillTemplate{}, err
	}
	return r.GetTemplate(ctx, id)
}

// UpdateTemplate rewrites a template and replaces its lines.
func (r *Repository) UpdateTemplate(ctx context.Context, id int64, in TemplateInput) (BillTemplate, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bill_templates SET name = $2, description = NULLIF($3, ''), active = $4
			WHERE id = $1`,
			id, in.Name, in.Description, in.Active)
		if err != nil {
			return fmt.Errorf("templates: update template: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrTemplateNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM bill_template_lines WHERE template_id = $1`, id); err != nil {
			return err
		}
		return insertLines(ctx, tx, id, in.Lines)
	})
	if err != nil {
		return BillTemplate{}, err
	}
	return r.GetTemplate(ctx, id)
}

// DeleteTemplate removes a template and its lines.
func (r *Repository) DeleteTemplate(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM bill_template_lines WHERE template_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM bill_templates WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrTemplateNotFound
		}
		return nil
	})
}

func insertLines(ctx context.Context, tx pgx.Tx, templateID int64, lines []TemplateLineInput) error {
	for _, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO bill_template_lines (template_id, charge_item_id, required, sort_order, note)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
			templateID, line.ChargeItemID, line.Required, line.SortOrder, line.Note)
		if err != nil {
			return fmt.Errorf("templates: insert template line: %w", err)
		}
	}
	return nil
}

// ListChargeItems returns the charge catalog ordered by code.
func (r *Repository) ListChargeItems(ctx context.Context) ([]ChargeItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name FROM charge_items ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ChargeItem
	for rows.Next() {
		var item ChargeItem
		if err := rows.Scan(&item.ID, &item.Code, &item.Name); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateChargeItem inserts a charge catalog entry.
func (r *Repository) CreateChargeItem(ctx context.Context, code, name string) (ChargeItem, error) {
	var item ChargeItem
	err := r.pool.QueryRow(ctx,
		`INSERT INTO charge_items (code, name) VALUES ($1, $2) RETURNING id, code, name`,
		code, name).Scan(&item.ID, &item.Code, &item.Name)
	if db.IsUniqueViolation(err, "") {
		return ChargeItem{}, ErrChargeItemExists
	}
	if err != nil {
		return ChargeItem{}, fmt.Errorf("templates: insert charge item: %w", err)
	}
	return item, nil
}
