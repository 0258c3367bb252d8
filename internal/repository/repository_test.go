package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docexplorer/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.ResearchNote{},
		&model.QAInteraction{},
		&model.DocumentSummary{},
		&model.Report{},
	))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	missing, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, missing)

	u := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, u))
	require.NotZero(t, u.ID)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)

	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.LastLoginAt)
	assert.False(t, got.Disabled)

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLastLogin(ctx, u.ID, at))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, at.Equal(*got.LastLoginAt))
}

func TestResearchNoteRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewResearchNoteRepository(newTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	notes := []model.ResearchNote{
		{ID: "n1", DocumentID: "d1", Content: "first", SourceType: model.NoteSourceManual, CreatedAt: base},
		{ID: "n2", DocumentID: "d1", Content: "second", SourceType: model.NoteSourceQA, CreatedAt: base.Add(time.Hour)},
		{ID: "n3", DocumentID: "d2", Content: "third", SourceType: model.NoteSourceQA, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range notes {
		require.NoError(t, repo.Save(ctx, &notes[i]))
	}

	list, err := repo.List(ctx, NoteFilter{DocumentID: "d1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)

	require.NoError(t, repo.Validate(ctx, "n1", "bob", "looks right", true, base.Add(3*time.Hour)))

	verified, err := repo.List(ctx, NoteFilter{DocumentID: "d1", VerifiedOnly: true})
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, "bob", verified[0].Validator)

	pending, err := repo.List(ctx, NoteFilter{Pending: true})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	validated, err := repo.List(ctx, NoteFilter{Validated: true})
	require.NoError(t, err)
	assert.Len(t, validated, 1)

	since := base.Add(30 * time.Minute)
	ranged, err := repo.List(ctx, NoteFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	require.NoError(t, repo.UpdateContent(ctx, "n2", "revised"))
	got, err := repo.GetByID(ctx, "n2")
	require.NoError(t, err)
	assert.Equal(t, "revised", got.Content)

	ids, err := repo.DocumentIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d1", "d2"}, ids)

	require.NoError(t, repo.Delete(ctx, "n3"))
	assert.ErrorIs(t, repo.Delete(ctx, "n3"), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateContent(ctx, "missing", "x"), ErrNotFound)

	gone, err := repo.GetByID(ctx, "n3")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestResearchNoteSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewResearchNoteRepository(newTestDB(t))
	note := model.ResearchNote{ID: "n1", DocumentID: "d1", Content: "c", SourceType: model.NoteSourceQA}
	require.NoError(t, repo.Save(ctx, &note))
	again := note
	require.NoError(t, repo.Save(ctx, &again))

	list, err := repo.List(ctx, NoteFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestQAInteractionAndSummaryRepositories(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	qa := NewQAInteractionRepository(db)
	for _, q := range []string{"q1", "q2", "q3"} {
		require.NoError(t, qa.Create(ctx, &model.QAInteraction{DocumentID: "d1", Question: q, Answer: "a"}))
	}
	list, err := qa.ListByDocument(ctx, "d1", 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	sums := NewSummaryRepository(db)
	latest, err := sums.Latest(ctx, "d1", model.SummaryKindDocument)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, sums.Create(ctx, &model.DocumentSummary{DocumentID: "d1", Kind: model.SummaryKindDocument, Content: "old"}))
	require.NoError(t, sums.Create(ctx, &model.DocumentSummary{DocumentID: "d1", Kind: model.SummaryKindDocument, Content: "new"}))
	latest, err = sums.Latest(ctx, "d1", model.SummaryKindDocument)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "new", latest.Content)
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, &model.Report{ID: "r1", DocumentID: "d1", Question: "q", Payload: "{}"}))

	got, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "{}", got.Payload)

	list, err := repo.ListByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
