package memory

import "github.com/tendant/portfolio-admin/pkg/portfolio"

// Store holds one in-memory table per entity.
type Store struct {
	Profiles       *Table[portfolio.Profile]
	Projects       *Table[portfolio.Project]
	Experiences    *Table[portfolio.Experience]
	Technologies   *Table[portfolio.Technology]
	SocialNetworks *Table[portfolio.SocialNetwork]
	Images         *Table[portfolio.Image]
}

// New creates an empty store
func New() *Store {
	return &Store{
		Profiles:       NewTable[portfolio.Profile](portfolio.ProfileSchema),
		Projects:       NewTable[portfolio.Project](portfolio.ProjectSchema),
		Experiences:    NewTable[portfolio.Experience](portfolio.ExperienceSchema),
		Technologies:   NewTable[portfolio.Technology](portfolio.TechnologySchema),
		SocialNetworks: NewTable[portfolio.SocialNetwork](portfolio.SocialNetworkSchema),
		Images:         NewTable[portfolio.Image](portfolio.ImageSchema),
	}
}
