package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luftujha/luftujha-core/internal/hru"
)

// ruleColumns is the canonical column list shared by all rule queries.
const ruleColumns = `id, name, start_minute, end_minute, day_of_week, priority,
	enabled, valve_targets, directive, created_at, updated_at`

// Repository defines storage operations for schedule rules.
type Repository interface {
	// GetByID retrieves a rule by its unique identifier.
	// Returns ErrRuleNotFound if no rule exists with the given ID.
	GetByID(ctx context.Context, id string) (*Rule, error)

	// List retrieves all rules ordered by priority descending then name.
	List(ctx context.Context) ([]*Rule, error)

	// ListEnabled retrieves only enabled rules, same ordering as List.
	ListEnabled(ctx context.Context) ([]*Rule, error)

	// Create persists a new rule. Returns ErrRuleExists on ID collision.
	Create(ctx context.Context, rule *Rule) error

	// Update modifies an existing rule. Returns ErrRuleNotFound if absent.
	Update(ctx context.Context, rule *Rule) error

	// Delete removes a rule. Returns ErrRuleNotFound if absent.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository backed by SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an existing database handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRule reads one rule from a scanner using the ruleColumns order.
func scanRule(scanner rowScanner) (*Rule, error) {
	var (
		rule       Rule
		dayOfWeek  sql.NullInt64
		targetsRaw string
		directive  sql.NullString
		createdAt  string
		updatedAt  string
		enabled    int
	)

	err := scanner.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Start,
		&rule.End,
		&dayOfWeek,
		&rule.Priority,
		&enabled,
		&targetsRaw,
		&directive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled != 0

	if dayOfWeek.Valid {
		day := int(dayOfWeek.Int64)
		rule.DayOfWeek = &day
	}

	rule.ValveTargets = map[string]float64{}
	if targetsRaw != "" {
		if err := json.Unmarshal([]byte(targetsRaw), &rule.ValveTargets); err != nil {
			return nil, fmt.Errorf("unmarshal valve targets for rule %s: %w", rule.ID, err)
		}
	}

	if directive.Valid && directive.String != "" {
		var d hru.Directive
		if err := json.Unmarshal([]byte(directive.String), &d); err != nil {
			return nil, fmt.Errorf("unmarshal directive for rule %s: %w", rule.ID, err)
		}
		rule.Directive = &d
	}

	if rule.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for rule %s: %w", rule.ID, err)
	}
	if rule.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for rule %s: %w", rule.ID, err)
	}

	return &rule, nil
}

// GetByID retrieves a rule by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM schedule_rules WHERE id = ?`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query rule %s: %w", id, err)
	}
	return rule, nil
}

// List retrieves all rules ordered by priority descending then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM schedule_rules ORDER BY priority DESC, name ASC`
	return r.queryRules(ctx, query)
}

// ListEnabled retrieves only enabled rules.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM schedule_rules WHERE enabled = 1 ORDER BY priority DESC, name ASC`
	return r.queryRules(ctx, query)
}

func (r *SQLiteRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// Create persists a new rule, stamping created_at and updated_at.
func (r *SQLiteRepository) Create(ctx context.Context, rule *Rule) error {
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	targets, directive, err := encodeRuleFields(rule)
	if err != nil {
		return err
	}

	query := `INSERT INTO schedule_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Start,
		rule.End,
		nullableDay(rule.DayOfWeek),
		rule.Priority,
		boolToInt(rule.Enabled),
		targets,
		directive,
		rule.CreatedAt.Format(time.RFC3339),
		rule.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("insert rule %s: %w", rule.ID, err)
	}
	return nil
}

// Update modifies an existing rule and refreshes updated_at.
func (r *SQLiteRepository) Update(ctx context.Context, rule *Rule) error {
	rule.UpdatedAt = time.Now().UTC()

	targets, directive, err := encodeRuleFields(rule)
	if err != nil {
		return err
	}

	query := `UPDATE schedule_rules SET
		name = ?, start_minute = ?, end_minute = ?, day_of_week = ?,
		priority = ?, enabled = ?, valve_targets = ?, directive = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		rule.Name,
		rule.Start,
		rule.End,
		nullableDay(rule.DayOfWeek),
		rule.Priority,
		boolToInt(rule.Enabled),
		targets,
		directive,
		rule.UpdatedAt.Format(time.RFC3339),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule %s: %w", rule.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update of rule %s: %w", rule.ID, err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedule_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete of rule %s: %w", id, err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// encodeRuleFields serializes the JSON-typed columns.
func encodeRuleFields(rule *Rule) (targets string, directive sql.NullString, err error) {
	targetsMap := rule.ValveTargets
	if targetsMap == nil {
		targetsMap = map[string]float64{}
	}
	raw, err := json.Marshal(targetsMap)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("marshal valve targets for rule %s: %w", rule.ID, err)
	}
	targets = string(raw)

	if rule.Directive != nil {
		raw, err := json.Marshal(rule.Directive)
		if err != nil {
			return "", sql.NullString{}, fmt.Errorf("marshal directive for rule %s: %w", rule.ID, err)
		}
		directive = sql.NullString{String: string(raw), Valid: true}
	}
	return targets, directive, nil
}

func nullableDay(day *int) sql.NullInt64 {
	if day == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*day), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError detects SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
