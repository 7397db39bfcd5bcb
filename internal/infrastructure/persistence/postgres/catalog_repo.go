package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements achievement.CatalogRepository for PostgreSQL.
// The catalog is written once on startup and read back for recovery.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// SaveAll upserts all catalog entries.
func (r *CatalogRepository) SaveAll(ctx context.Context, achievements []achievement.Achievement) error {
	query := `
		INSERT INTO achievements (
			id, name, description, category, difficulty,
			requirements, rewards, prerequisites, icon, hidden, max_progress, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			difficulty = EXCLUDED.difficulty,
			requirements = EXCLUDED.requirements,
			rewards = EXCLUDED.rewards,
			prerequisites = EXCLUDED.prerequisites,
			icon = EXCLUDED.icon,
			hidden = EXCLUDED.hidden,
			max_progress = EXCLUDED.max_progress,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	for _, a := range achievements {
		requirementsJSON, err := json.Marshal(a.Requirements)
		if err != nil {
			return fmt.Errorf("failed to marshal requirements for %s: %w", a.ID, err)
		}
		rewardsJSON, err := json.Marshal(a.Rewards)
		if err != nil {
			return fmt.Errorf("failed to marshal rewards for %s: %w", a.ID, err)
		}
		prerequisites := a.Prerequisites
		if prerequisites == nil {
			prerequisites = []string{}
		}
		prerequisitesJSON, err := json.Marshal(prerequisites)
		if err != nil {
			return fmt.Errorf("failed to marshal prerequisites for %s: %w", a.ID, err)
		}

		_, err = r.conn.Exec(ctx, query,
			a.ID,
			a.Name,
			a.Description,
			string(a.Category),
			string(a.Difficulty),
			requirementsJSON,
			rewardsJSON,
			prerequisitesJSON,
			a.Icon,
			a.Hidden,
			a.MaxProgress,
			now,
		)
		if err != nil {
			return shared.WrapError("postgres", "SaveCatalog", shared.ErrStorage, "failed to save catalog entry", err)
		}
	}

	return nil
}

// LoadAll reads the catalog from storage.
func (r *CatalogRepository) LoadAll(ctx context.Context) ([]achievement.Achievement, error) {
	query := `
		SELECT id, name, description, category, difficulty,
			   requirements, rewards, prerequisites, icon, hidden, max_progress
		FROM achievements
		ORDER BY id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var result []achievement.Achievement
	for rows.Next() {
		var a achievement.Achievement
		var category, difficulty string
		var requirementsJSON, rewardsJSON, prerequisitesJSON []byte

		err := rows.Scan(
			&a.ID,
			&a.Name,
			&a.Description,
			&category,
			&difficulty,
			&requirementsJSON,
			&rewardsJSON,
			&prerequisitesJSON,
			&a.Icon,
			&a.Hidden,
			&a.MaxProgress,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}

		a.Category = achievement.Category(category)
		a.Difficulty = achievement.Difficulty(difficulty)
		if err := json.Unmarshal(requirementsJSON, &a.Requirements); err != nil {
			return nil, fmt.Errorf("failed to unmarshal requirements for %s: %w", a.ID, err)
		}
		if err := json.Unmarshal(rewardsJSON, &a.Rewards); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rewards for %s: %w", a.ID, err)
		}
		if err := json.Unmarshal(prerequisitesJSON, &a.Prerequisites); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prerequisites for %s: %w", a.ID, err)
		}

		result = append(result, a)
	}

	return result, rows.Err()
}
