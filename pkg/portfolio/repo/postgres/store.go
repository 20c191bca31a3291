package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

//go:embed schema.sql
var schemaSQL string

// Store holds one table client per entity, all sharing the same connection
type Store struct {
	Profiles       *Table[portfolio.Profile]
	Projects       *Table[portfolio.Project]
	Experiences    *Table[portfolio.Experience]
	Technologies   *Table[portfolio.Technology]
	SocialNetworks *Table[portfolio.SocialNetwork]
	Images         *Table[portfolio.Image]
}

// New creates a store on db
func New(db DBTX) *Store {
	return &Store{
		Profiles:       NewTable[portfolio.Profile](db, portfolio.ProfileSchema),
		Projects:       NewTable[portfolio.Project](db, portfolio.ProjectSchema),
		Experiences:    NewTable[portfolio.Experience](db, portfolio.ExperienceSchema),
		Technologies:   NewTable[portfolio.Technology](db, portfolio.TechnologySchema),
		SocialNetworks: NewTable[portfolio.SocialNetwork](db, portfolio.SocialNetworkSchema),
		Images:         NewTable[portfolio.Image](db, portfolio.ImageSchema),
	}
}

// NewWithPool creates a store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return New(pool)
}

// Migrate creates any missing tables. It is safe to run on every start.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
