package portfolio

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Table names shared by every backend.
const (
	TableProfiles       = "profiles"
	TableProjects       = "projects"
	TableExperiences    = "experiences"
	TableTechnologies   = "technologies"
	TableSocialNetworks = "social_networks"
	TableImages         = "images"
)

// Profile is the owner of the portfolio. The application treats it as a
// singleton but nothing enforces uniqueness.
type Profile struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	LastName    *string `json:"last_name" db:"last_name"`
	Email       *string `json:"email" db:"email"`
	Phone       *string `json:"phone" db:"phone"`
	Image       *string `json:"image" db:"image"`
	Description *string `json:"description" db:"description"`
}

// Project is a portfolio entry. TechnologiesIDs is the persisted many-to-many
// link; Technologies is resolved by ProjectService and never stored.
type Project struct {
	ID              int64        `json:"id" db:"id"`
	Name            string       `json:"name" db:"name"`
	Description     string       `json:"description" db:"description"`
	DemoLink        *string      `json:"demo_link" db:"demo_link"`
	ImageLink       string       `json:"image_link" db:"image_link"`
	RepositoryLink  *string      `json:"repository_link" db:"repository_link"`
	TechnologiesIDs []int64      `json:"technologies_ids" db:"technologies_ids"`
	Technologies    []Technology `json:"technologies" db:"-"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}

// Experience is a job position. A nil EndDate means the position is ongoing.
type Experience struct {
	ID          int64     `json:"id" db:"id"`
	Company     string    `json:"company" db:"company"`
	Position    string    `json:"position" db:"position"`
	StartDate   Date      `json:"start_date" db:"start_date"`
	EndDate     *Date     `json:"end_date" db:"end_date"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Ongoing reports whether the experience has no end date.
func (e Experience) Ongoing() bool {
	return e.EndDate == nil
}

// Technology is a tool or language. IsSkill marks the subset shown as skills.
type Technology struct {
	ID                int64     `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	DocumentationLink *string   `json:"documentation_link" db:"documentation_link"`
	IconLink          *string   `json:"icon_link" db:"icon_link"`
	IsSkill           bool      `json:"is_skill" db:"is_skill"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// SocialNetwork is a profile link. Inactive networks are hidden publicly.
type SocialNetwork struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Logo      string    `json:"logo" db:"logo"`
	Link      string    `json:"link" db:"link"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Image is a row describing an object in the blob store. Path is the object
// key and PublicURL is derived from it by the store.
type Image struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	PublicURL string    `json:"public_url" db:"public_url"`
	Path      string    `json:"path" db:"path"`
	IsLogo    bool      `json:"is_logo" db:"is_logo"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DateLayout is the wire and storage format of Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}
