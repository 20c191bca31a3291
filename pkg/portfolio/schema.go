package portfolio

import "slices"

// Schema lists the writable columns of a table. Backends reject writes to
// any other column.
type Schema struct {
	Table    string
	Columns  []string
	Required []string
	Defaults map[string]any
	// Timestamped tables carry a created_at column set on insert.
	Timestamped bool
}

// HasColumn reports whether name is a column of the table, including the
// generated id and created_at columns.
func (s Schema) HasColumn(name string) bool {
	if name == "id" || (name == "created_at" && s.Timestamped) {
		return true
	}
	return slices.Contains(s.Columns, name)
}

// IsRequired reports whether the column rejects NULL.
func (s Schema) IsRequired(name string) bool {
	return slices.Contains(s.Required, name)
}

var (
	ProfileSchema = Schema{
		Table:    TableProfiles,
		Columns:  []string{"name", "last_name", "email", "phone", "image", "description"},
		Required: []string{"name"},
	}
	ProjectSchema = Schema{
		Table:       TableProjects,
		Columns:     []string{"name", "description", "demo_link", "image_link", "repository_link", "technologies_ids"},
		Required:    []string{"name", "description", "image_link", "technologies_ids"},
		Defaults:    map[string]any{"technologies_ids": []int64{}},
		Timestamped: true,
	}
	ExperienceSchema = Schema{
		Table:       TableExperiences,
		Columns:     []string{"company", "position", "start_date", "end_date", "description"},
		Required:    []string{"company", "position", "start_date"},
		Timestamped: true,
	}
	TechnologySchema = Schema{
		Table:       TableTechnologies,
		Columns:     []string{"name", "documentation_link", "icon_link", "is_skill"},
		Required:    []string{"name", "is_skill"},
		Defaults:    map[string]any{"is_skill": false},
		Timestamped: true,
	}
	SocialNetworkSchema = Schema{
		Table:       TableSocialNetworks,
		Columns:     []string{"name", "logo", "link", "is_active"},
		Required:    []string{"name", "logo", "link", "is_active"},
		Defaults:    map[string]any{"is_active": true},
		Timestamped: true,
	}
	ImageSchema = Schema{
		Table:       TableImages,
		Columns:     []string{"name", "public_url", "path", "is_logo"},
		Required:    []string{"name", "public_url", "path", "is_logo"},
		Defaults:    map[string]any{"is_logo": false},
		Timestamped: true,
	}
)
