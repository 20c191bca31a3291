package portfolio_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
	"github.com/tendant/portfolio-admin/pkg/portfolio/notify"
	"github.com/tendant/portfolio-admin/pkg/portfolio/repo/memory"
)

// faultyTable wraps a table and fails the configured operations
type faultyTable[E any] struct {
	portfolio.Table[E]
	selectErr error
	insertErr error
	updateErr error
}

func (f *faultyTable[E]) Select(ctx context.Context, q portfolio.Query) ([]E, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.Table.Select(ctx, q)
}

func (f *faultyTable[E]) Insert(ctx context.Context, values map[string]any) (E, error) {
	if f.insertErr != nil {
		var zero E
		return zero, f.insertErr
	}
	return f.Table.Insert(ctx, values)
}

func (f *faultyTable[E]) Update(ctx context.Context, id int64, values map[string]any) (E, error) {
	if f.updateErr != nil {
		var zero E
		return zero, f.updateErr
	}
	return f.Table.Update(ctx, id, values)
}

func recent(t *testing.T, feed *notify.Feed) []portfolio.Notification {
	t.Helper()
	items, err := feed.Recent(context.Background(), 0)
	require.NoError(t, err)
	return items
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestTechnologyService(t *testing.T) {
	store := memory.New()
	feed := notify.NewFeed(50)
	svc := portfolio.NewTechnologyService(store.Technologies, portfolio.WithNotifier(feed))
	ctx := context.Background()

	t.Run("Create_ThenList", func(t *testing.T) {
		for _, name := range []string{"TypeScript", "Go", "Angular", "PostgreSQL", "Docker"} {
			_, err := svc.Create(ctx, portfolio.TechnologyDraft{Name: name})
			require.NoError(t, err)
		}
		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 5)
		assert.Equal(t, "Angular", list[0].Name)
		assert.Equal(t, "TypeScript", list[4].Name)

		items := recent(t, feed)
		require.NotEmpty(t, items)
		assert.Equal(t, portfolio.KindSuccess, items[0].Kind)
		assert.Equal(t, "Technology created successfully", items[0].Detail)
	})

	t.Run("Update_MarksSkill", func(t *testing.T) {
		updated, err := svc.Update(ctx, 5, portfolio.TechnologyPatch{IsSkill: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, updated.IsSkill)
		assert.Equal(t, "Docker", updated.Name)

		skills, err := svc.Skills(ctx)
		require.NoError(t, err)
		require.Len(t, skills, 1)
		assert.Equal(t, int64(5), skills[0].ID)
	})

	t.Run("Update_MissingID", func(t *testing.T) {
		_, err := svc.Update(ctx, 404, portfolio.TechnologyPatch{Name: strPtr("x")})
		require.Error(t, err)
		assert.Equal(t, portfolio.KindNoRows, portfolio.QueryErrorKindOf(err))
		assert.Contains(t, err.Error(), "error updating technology")
	})

	t.Run("Delete_MissingIDIsNoop", func(t *testing.T) {
		assert.NoError(t, svc.Delete(ctx, 404))
	})

	t.Run("Get", func(t *testing.T) {
		tech, err := svc.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "Go", tech.Name)

		_, err = svc.Get(ctx, 404)
		assert.ErrorIs(t, err, portfolio.ErrNoRows)
	})

	t.Run("Create_Validation", func(t *testing.T) {
		_, err := svc.Create(ctx, portfolio.TechnologyDraft{Name: "  "})
		require.Error(t, err)
		assert.True(t, portfolio.IsValidation(err))
		var ve *portfolio.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"name"}, ve.Fields)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, 1))
		list, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 4)
		assert.Equal(t, "Technology deleted successfully", recent(t, feed)[0].Detail)
	})
}

func TestEntityService_ListFailureNotifies(t *testing.T) {
	boom := portfolio.QueryError(portfolio.TableProfiles, "select", portfolio.KindUnavailable, errors.New("connection refused"))
	table := &faultyTable[portfolio.Profile]{Table: memory.New().Profiles, selectErr: boom}
	feed := notify.NewFeed(10)
	svc := portfolio.NewProfileService(table, portfolio.WithNotifier(feed))

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, portfolio.KindUnavailable, portfolio.QueryErrorKindOf(err))

	items := recent(t, feed)
	require.Len(t, items, 1)
	assert.Equal(t, portfolio.KindError, items[0].Kind)
	assert.Equal(t, portfolio.ErrorLife, items[0].Life)
	assert.Contains(t, items[0].Detail, "error listing profiles")
}

func TestEntityService_EmptyListIsNotNil(t *testing.T) {
	svc := portfolio.NewSocialNetworkService(memory.New().SocialNetworks)
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestEntityServices_CreateThenList(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	t.Run("Profile", func(t *testing.T) {
		svc := portfolio.NewProfileService(store.Profiles)
		_, err := svc.Create(ctx, portfolio.ProfileDraft{Name: "Ada", Email: strPtr("ada@example.com"), Phone: strPtr("")})
		require.NoError(t, err)
		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Ada", list[0].Name)
		assert.Equal(t, "ada@example.com", *list[0].Email)
		assert.Nil(t, list[0].Phone)

		updated, err := svc.Update(ctx, list[0].ID, portfolio.ProfilePatch{Email: strPtr("")})
		require.NoError(t, err)
		assert.Nil(t, updated.Email)

		_, err = svc.Update(ctx, list[0].ID, portfolio.ProfilePatch{Name: strPtr("")})
		assert.True(t, portfolio.IsValidation(err))
	})

	t.Run("Experience", func(t *testing.T) {
		svc := portfolio.NewExperienceService(store.Experiences)
		end := portfolio.NewDate(2021, 12, 31)
		_, err := svc.Create(ctx, portfolio.ExperienceDraft{Company: "Old", Position: "Dev", StartDate: portfolio.NewDate(2019, 1, 1), EndDate: &end})
		require.NoError(t, err)
		_, err = svc.Create(ctx, portfolio.ExperienceDraft{Company: "Current", Position: "Lead", StartDate: portfolio.NewDate(2022, 2, 1)})
		require.NoError(t, err)

		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Current", list[0].Company)
		assert.True(t, list[0].Ongoing())
		assert.False(t, list[1].Ongoing())

		_, err = svc.Create(ctx, portfolio.ExperienceDraft{Company: "X", Position: "Y"})
		var ve *portfolio.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"start_date"}, ve.Fields)

		_, err = svc.Create(ctx, portfolio.ExperienceDraft{Company: "X", Position: "Y", StartDate: portfolio.NewDate(2020, 1, 1), EndDate: &end})
		require.NoError(t, err)
		early := portfolio.NewDate(2010, 1, 1)
		_, err = svc.Create(ctx, portfolio.ExperienceDraft{Company: "X", Position: "Y", StartDate: portfolio.NewDate(2020, 1, 1), EndDate: &early})
		assert.True(t, portfolio.IsValidation(err))

		start := portfolio.NewDate(2020, 1, 1)
		_, err = svc.Update(ctx, list[1].ID, portfolio.ExperiencePatch{StartDate: &start, EndDate: &early})
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"end_date"}, ve.Fields)
		unchanged, err := svc.Get(ctx, list[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "Old", unchanged.Company)
		require.NotNil(t, unchanged.EndDate)
		assert.True(t, end.Equal(unchanged.EndDate.Time))

		updated, err := svc.Update(ctx, list[1].ID, portfolio.ExperiencePatch{StartDate: &start, EndDate: &end})
		require.NoError(t, err)
		assert.True(t, start.Equal(updated.StartDate.Time))
	})

	t.Run("SocialNetwork", func(t *testing.T) {
		svc := portfolio.NewSocialNetworkService(store.SocialNetworks)
		_, err := svc.Create(ctx, portfolio.SocialNetworkDraft{Name: "GitHub", Logo: "gh.svg", Link: "https://github.com/ada", IsActive: true})
		require.NoError(t, err)
		_, err = svc.Create(ctx, portfolio.SocialNetworkDraft{Name: "Bluesky", Logo: "bs.svg", Link: "https://bsky.app/ada"})
		require.NoError(t, err)

		active, err := svc.Active(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "GitHub", active[0].Name)

		_, err = svc.Create(ctx, portfolio.SocialNetworkDraft{Name: "X"})
		var ve *portfolio.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"logo", "link"}, ve.Fields)
	})
}

func TestProjectService_ResolvesTechnologies(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	techs := portfolio.NewTechnologyService(store.Technologies)
	projects := portfolio.NewProjectService(store.Projects, store.Technologies)

	goTech, err := techs.Create(ctx, portfolio.TechnologyDraft{Name: "Go"})
	require.NoError(t, err)
	pg, err := techs.Create(ctx, portfolio.TechnologyDraft{Name: "PostgreSQL"})
	require.NoError(t, err)

	created, err := projects.Create(ctx, portfolio.ProjectDraft{
		Name:            "Portfolio API",
		Description:     "Admin backend",
		ImageLink:       "https://img/api.png",
		TechnologiesIDs: []int64{pg.ID, goTech.ID, 999},
	})
	require.NoError(t, err)
	require.Len(t, created.Technologies, 2)
	assert.Equal(t, "PostgreSQL", created.Technologies[0].Name)
	assert.Equal(t, "Go", created.Technologies[1].Name)

	_, err = projects.Create(ctx, portfolio.ProjectDraft{Name: "Bare", Description: "d", ImageLink: "i"})
	require.NoError(t, err)

	list, err := projects.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bare", list[0].Name)
	assert.NotNil(t, list[0].Technologies)
	assert.Empty(t, list[0].Technologies)
	assert.Len(t, list[1].Technologies, 2)

	ids := []int64{goTech.ID}
	updated, err := projects.Update(ctx, created.ID, portfolio.ProjectPatch{TechnologiesIDs: &ids})
	require.NoError(t, err)
	require.Len(t, updated.Technologies, 1)
	assert.Equal(t, "Go", updated.Technologies[0].Name)

	_, err = projects.Create(ctx, portfolio.ProjectDraft{Name: "Missing fields"})
	var ve *portfolio.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"description", "image_link"}, ve.Fields)
}
