package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// CreateProject inserts a new Project and returns it with a generated id.
func (s *Store) CreateProject(ctx context.Context, name, rootPath, defaultBranch string) (*model.Project, error) {
	p := &model.Project{
		ID:            uuid.NewString(),
		Name:          name,
		RootPath:      rootPath,
		DefaultBranch: defaultBranch,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, root_path, default_branch, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.RootPath, p.DefaultBranch, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	return p, nil
}

// GetProject loads a Project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, root_path, default_branch FROM projects WHERE id = ?`, id)

	var p model.Project

	var rootPath, branch sql.NullString

	if err := row.Scan(&p.ID, &p.Name, &rootPath, &branch); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get project: %w", err)
	}

	p.RootPath = rootPath.String
	p.DefaultBranch = branch.String

	return &p, nil
}

// ListProjects returns all projects ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, root_path, default_branch FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project

	for rows.Next() {
		var p model.Project

		var rootPath, branch sql.NullString

		if err := rows.Scan(&p.ID, &p.Name, &rootPath, &branch); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}

		p.RootPath = rootPath.String
		p.DefaultBranch = branch.String
		out = append(out, p)
	}

	return out, rows.Err()
}
