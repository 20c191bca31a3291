package portfolio

import (
	"io"
	"strings"
)

// Draft is a create or update payload that knows how to validate itself and
// which columns it writes.
type Draft interface {
	Validate() error
	Columns() map[string]any
}

// nullable maps an empty optional string to SQL NULL.
func nullable(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return *s
}

func setString(cols map[string]any, name string, v *string) {
	if v != nil {
		cols[name] = *v
	}
}

func setNullable(cols map[string]any, name string, v *string) {
	if v != nil {
		cols[name] = nullable(v)
	}
}

func setBool(cols map[string]any, name string, v *bool) {
	if v != nil {
		cols[name] = *v
	}
}

// requireIfSet rejects a patch that blanks a required column.
func requireIfSet(fields ...FieldValuePtr) error {
	var missing []string
	for _, f := range fields {
		if f.Value != nil && strings.TrimSpace(*f.Value) == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Fields: missing}
}

// FieldValuePtr is the patch counterpart of FieldValue.
type FieldValuePtr struct {
	Name  string
	Value *string
}

// ProfileDraft creates a profile.
type ProfileDraft struct {
	Name        string  `json:"name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Image       *string `json:"image"`
	Description *string `json:"description"`
}

func (d ProfileDraft) Validate() error {
	return Required(Field("name", d.Name))
}

func (d ProfileDraft) Columns() map[string]any {
	return map[string]any{
		"name":        d.Name,
		"last_name":   nullable(d.LastName),
		"email":       nullable(d.Email),
		"phone":       nullable(d.Phone),
		"image":       nullable(d.Image),
		"description": nullable(d.Description),
	}
}

// ProfilePatch updates the fields that are set. An empty optional string
// clears the column.
type ProfilePatch struct {
	Name        *string `json:"name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Image       *string `json:"image"`
	Description *string `json:"description"`
}

func (p ProfilePatch) Validate() error {
	return requireIfSet(FieldValuePtr{"name", p.Name})
}

func (p ProfilePatch) Columns() map[string]any {
	cols := map[string]any{}
	setString(cols, "name", p.Name)
	setNullable(cols, "last_name", p.LastName)
	setNullable(cols, "email", p.Email)
	setNullable(cols, "phone", p.Phone)
	setNullable(cols, "image", p.Image)
	setNullable(cols, "description", p.Description)
	return cols
}

// ProjectDraft creates a project.
type ProjectDraft struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DemoLink        *string `json:"demo_link"`
	ImageLink       string  `json:"image_link"`
	RepositoryLink  *string `json:"repository_link"`
	TechnologiesIDs []int64 `json:"technologies_ids"`
}

func (d ProjectDraft) Validate() error {
	return Required(
		Field("name", d.Name),
		Field("description", d.Description),
		Field("image_link", d.ImageLink),
	)
}

func (d ProjectDraft) Columns() map[string]any {
	ids := d.TechnologiesIDs
	if ids == nil {
		ids = []int64{}
	}
	return map[string]any{
		"name":             d.Name,
		"description":      d.Description,
		"demo_link":        nullable(d.DemoLink),
		"image_link":       d.ImageLink,
		"repository_link":  nullable(d.RepositoryLink),
		"technologies_ids": ids,
	}
}

// ProjectPatch updates the fields that are set.
type ProjectPatch struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	DemoLink        *string  `json:"demo_link"`
	ImageLink       *string  `json:"image_link"`
	RepositoryLink  *string  `json:"repository_link"`
	TechnologiesIDs *[]int64 `json:"technologies_ids"`
}

func (p ProjectPatch) Validate() error {
	return requireIfSet(
		FieldValuePtr{"name", p.Name},
		FieldValuePtr{"description", p.Description},
		FieldValuePtr{"image_link", p.ImageLink},
	)
}

func (p ProjectPatch) Columns() map[string]any {
	cols := map[string]any{}
	setString(cols, "name", p.Name)
	setString(cols, "description", p.Description)
	setNullable(cols, "demo_link", p.DemoLink)
	setString(cols, "image_link", p.ImageLink)
	setNullable(cols, "repository_link", p.RepositoryLink)
	if p.TechnologiesIDs != nil {
		ids := *p.TechnologiesIDs
		if ids == nil {
			ids = []int64{}
		}
		cols["technologies_ids"] = ids
	}
	return cols
}

// ExperienceDraft creates an experience. A nil EndDate marks it ongoing.
type ExperienceDraft struct {
	Company     string  `json:"company"`
	Position    string  `json:"position"`
	StartDate   Date    `json:"start_date"`
	EndDate     *Date   `json:"end_date"`
	Description *string `json:"description"`
}

func (d ExperienceDraft) Validate() error {
	err := Required(Field("company", d.Company), Field("position", d.Position))
	if d.StartDate.IsZero() {
		ve, _ := err.(*ValidationError)
		if ve == nil {
			ve = &ValidationError{}
		}
		ve.Fields = append(ve.Fields, "start_date")
		return ve
	}
	if err != nil {
		return err
	}
	if d.EndDate != nil && !d.EndDate.IsZero() && d.EndDate.Before(d.StartDate.Time) {
		return &ValidationError{Fields: []string{"end_date"}, Message: "end_date must not be before start_date"}
	}
	return nil
}

func (d ExperienceDraft) Columns() map[string]any {
	return map[string]any{
		"company":     d.Company,
		"position":    d.Position,
		"start_date":  d.StartDate,
		"end_date":    dateOrNull(d.EndDate),
		"description": nullable(d.Description),
	}
}

func dateOrNull(d *Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return *d
}

// ExperiencePatch updates the fields that are set. An EndDate holding the
// zero date ("" on the wire) marks the experience ongoing again.
type ExperiencePatch struct {
	Company     *string `json:"company"`
	Position    *string `json:"position"`
	StartDate   *Date   `json:"start_date"`
	EndDate     *Date   `json:"end_date"`
	Description *string `json:"description"`
}

func (p ExperiencePatch) Validate() error {
	if err := requireIfSet(
		FieldValuePtr{"company", p.Company},
		FieldValuePtr{"position", p.Position},
	); err != nil {
		return err
	}
	if p.StartDate != nil && p.StartDate.IsZero() {
		return &ValidationError{Fields: []string{"start_date"}}
	}
	if p.StartDate != nil && p.EndDate != nil && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate.Time) {
		return &ValidationError{Fields: []string{"end_date"}, Message: "end_date must not be before start_date"}
	}
	return nil
}

func (p ExperiencePatch) Columns() map[string]any {
	cols := map[string]any{}
	setString(cols, "company", p.Company)
	setString(cols, "position", p.Position)
	if p.StartDate != nil {
		cols["start_date"] = *p.StartDate
	}
	if p.EndDate != nil {
		cols["end_date"] = dateOrNull(p.EndDate)
	}
	setNullable(cols, "description", p.Description)
	return cols
}

// TechnologyDraft creates a technology.
type TechnologyDraft struct {
	Name              string  `json:"name"`
	DocumentationLink *string `json:"documentation_link"`
	IconLink          *string `json:"icon_link"`
	IsSkill           bool    `json:"is_skill"`
}

func (d TechnologyDraft) Validate() error {
	return Required(Field("name", d.Name))
}

func (d TechnologyDraft) Columns() map[string]any {
	return map[string]any{
		"name":               d.Name,
		"documentation_link": nullable(d.DocumentationLink),
		"icon_link":          nullable(d.IconLink),
		"is_skill":           d.IsSkill,
	}
}

// TechnologyPatch updates the fields that are set.
type TechnologyPatch struct {
	Name              *string `json:"name"`
	DocumentationLink *string `json:"documentation_link"`
	IconLink          *string `json:"icon_link"`
	IsSkill           *bool   `json:"is_skill"`
}

func (p TechnologyPatch) Validate() error {
	return requireIfSet(FieldValuePtr{"name", p.Name})
}

func (p TechnologyPatch) Columns() map[string]any {
	cols := map[string]any{}
	setString(cols, "name", p.Name)
	setNullable(cols, "documentation_link", p.DocumentationLink)
	setNullable(cols, "icon_link", p.IconLink)
	setBool(cols, "is_skill", p.IsSkill)
	return cols
}

// SocialNetworkDraft creates a social network link.
type SocialNetworkDraft struct {
	Name     string `json:"name"`
	Logo     string `json:"logo"`
	Link     string `json:"link"`
	IsActive bool   `json:"is_active"`
}

func (d SocialNetworkDraft) Validate() error {
	return Required(Field("name", d.Name), Field("logo", d.Logo), Field("link", d.Link))
}

func (d SocialNetworkDraft) Columns() map[string]any {
	return map[string]any{
		"name":      d.Name,
		"logo":      d.Logo,
		"link":      d.Link,
		"is_active": d.IsActive,
	}
}

// SocialNetworkPatch updates the fields that are set.
type SocialNetworkPatch struct {
	Name     *string `json:"name"`
	Logo     *string `json:"logo"`
	Link     *string `json:"link"`
	IsActive *bool   `json:"is_active"`
}

func (p SocialNetworkPatch) Validate() error {
	return requireIfSet(
		FieldValuePtr{"name", p.Name},
		FieldValuePtr{"logo", p.Logo},
		FieldValuePtr{"link", p.Link},
	)
}

func (p SocialNetworkPatch) Columns() map[string]any {
	cols := map[string]any{}
	setString(cols, "name", p.Name)
	setString(cols, "logo", p.Logo)
	setString(cols, "link", p.Link)
	setBool(cols, "is_active", p.IsActive)
	return cols
}

// FileUpload is a file received from a client.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// ImageDraft creates an image. Both Name and File are required.
type ImageDraft struct {
	Name   string
	IsLogo bool
	File   *FileUpload
}

func (d ImageDraft) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if d.File == nil || d.File.Reader == nil {
		missing = append(missing, "file")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// ImagePatch updates an image. A non-nil File replaces the stored object.
type ImagePatch struct {
	Name   *string
	IsLogo *bool
	File   *FileUpload
}

func (p ImagePatch) Validate() error {
	if err := requireIfSet(FieldValuePtr{"name", p.Name}); err != nil {
		return err
	}
	if p.File != nil && p.File.Reader == nil {
		return &ValidationError{Fields: []string{"file"}}
	}
	return nil
}

// Columns returns the row fields of the patch. Path and public_url are
// filled in by ImageService after an upload.
func (p ImagePatch) Columns() map[string]any {
	cols := map[string]any{}
	setString(cols, "name", p.Name)
	setBool(cols, "is_logo", p.IsLogo)
	return cols
}
