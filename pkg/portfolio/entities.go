package portfolio

import (
	"context"
	"fmt"
)

var (
	ProfileEntity       = Entity{Singular: "profile", Plural: "profiles", Label: "Profile", OrderBy: "name", Ascending: true}
	ProjectEntity       = Entity{Singular: "project", Plural: "projects", Label: "Project", OrderBy: "name", Ascending: true}
	ExperienceEntity    = Entity{Singular: "experience", Plural: "experiences", Label: "Experience", OrderBy: "start_date", Ascending: false}
	TechnologyEntity    = Entity{Singular: "technology", Plural: "technologies", Label: "Technology", OrderBy: "name", Ascending: true}
	SocialNetworkEntity = Entity{Singular: "social network", Plural: "social networks", Label: "Social network", OrderBy: "name", Ascending: true}
	ImageEntity         = Entity{Singular: "image", Plural: "images", Label: "Image", OrderBy: "name", Ascending: true}
)

// ProfileService manages the profiles table.
type ProfileService struct {
	*EntityService[Profile]
}

// NewProfileService creates a ProfileService over table.
func NewProfileService(table Table[Profile], opts ...Option) *ProfileService {
	return &ProfileService{NewEntityService(table, ProfileEntity, opts...)}
}

// ExperienceService manages the experiences table.
type ExperienceService struct {
	*EntityService[Experience]
}

// NewExperienceService creates an ExperienceService listing the latest start first.
func NewExperienceService(table Table[Experience], opts ...Option) *ExperienceService {
	return &ExperienceService{NewEntityService(table, ExperienceEntity, opts...)}
}

// TechnologyService manages the technologies table.
type TechnologyService struct {
	*EntityService[Technology]
}

// NewTechnologyService creates a TechnologyService over table.
func NewTechnologyService(table Table[Technology], opts ...Option) *TechnologyService {
	return &TechnologyService{NewEntityService(table, TechnologyEntity, opts...)}
}

// Skills returns the technologies flagged as skills, ordered by name.
func (s *TechnologyService) Skills(ctx context.Context) ([]Technology, error) {
	return s.ListWhere(ctx, Eq("is_skill", true))
}

// SocialNetworkService manages the social_networks table.
type SocialNetworkService struct {
	*EntityService[SocialNetwork]
}

// NewSocialNetworkService creates a SocialNetworkService over table.
func NewSocialNetworkService(table Table[SocialNetwork], opts ...Option) *SocialNetworkService {
	return &SocialNetworkService{NewEntityService(table, SocialNetworkEntity, opts...)}
}

// Active returns the networks visible on the public site.
func (s *SocialNetworkService) Active(ctx context.Context) ([]SocialNetwork, error) {
	return s.ListWhere(ctx, Eq("is_active", true))
}

// ProjectService resolves technologies_ids into Technology values on every
// read and write.
type ProjectService struct {
	*EntityService[Project]
	technologies Table[Technology]
}

// NewProjectService creates a ProjectService reading technologies from the
// technologies table.
func NewProjectService(table Table[Project], technologies Table[Technology], opts ...Option) *ProjectService {
	return &ProjectService{
		EntityService: NewEntityService(table, ProjectEntity, opts...),
		technologies:  technologies,
	}
}

// List returns every project with its technologies.
func (s *ProjectService) List(ctx context.Context) ([]Project, error) {
	projects, err := s.EntityService.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, projects); err != nil {
		err = fmt.Errorf("error listing projects: %w", err)
		s.notifyError(ctx, err)
		return nil, err
	}
	return projects, nil
}

// Get returns the project with id and its technologies.
func (s *ProjectService) Get(ctx context.Context, id int64) (Project, error) {
	p, err := s.EntityService.Get(ctx, id)
	if err != nil {
		return p, err
	}
	return s.resolveOne(ctx, p, "getting")
}

// Create inserts the project and returns it with its technologies.
func (s *ProjectService) Create(ctx context.Context, draft Draft) (Project, error) {
	p, err := s.EntityService.Create(ctx, draft)
	if err != nil {
		return p, err
	}
	return s.resolveOne(ctx, p, "creating")
}

func (s *ProjectService) Update(ctx context.Context, id int64, patch Draft) (Project, error) {
	p, err := s.EntityService.Update(ctx, id, patch)
	if err != nil {
		return p, err
	}
	return s.resolveOne(ctx, p, "updating")
}

func (s *ProjectService) resolveOne(ctx context.Context, p Project, verb string) (Project, error) {
	projects := []Project{p}
	if err := s.resolve(ctx, projects); err != nil {
		return p, fmt.Errorf("error %s project: %w", verb, err)
	}
	return projects[0], nil
}

// resolve loads every referenced technology with a single query. Ids with
// no matching technology are skipped.
func (s *ProjectService) resolve(ctx context.Context, projects []Project) error {
	needed := false
	for i := range projects {
		projects[i].Technologies = []Technology{}
		if len(projects[i].TechnologiesIDs) > 0 {
			needed = true
		}
	}
	if !needed || s.technologies == nil {
		return nil
	}

	techs, err := s.technologies.Select(ctx, Query{OrderBy: "name", Ascending: true})
	if err != nil {
		return fmt.Errorf("error resolving technologies: %w", err)
	}
	byID := make(map[int64]Technology, len(techs))
	for _, t := range techs {
		byID[t.ID] = t
	}
	for i := range projects {
		for _, id := range projects[i].TechnologiesIDs {
			if t, ok := byID[id]; ok {
				projects[i].Technologies = append(projects[i].Technologies, t)
			}
		}
	}
	return nil
}
