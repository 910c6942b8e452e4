package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/testutil"
)

func seedConversation(t *testing.T, tdb *TenantDB, id, instanceID int64, status string) {
	t.Helper()
	require.NoError(t, tdb.Create(&domain.Conversation{
		ID:          id,
		InstanceID:  instanceID,
		ChatID:      "5511999990000@s.whatsapp.net",
		Status:      status,
		UnreadCount: 3,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}))
}

func TestTenantDBIsolation(t *testing.T) {
	db := testutil.NewDB(t)
	a := ForTenant(db, 10)
	b := ForTenant(db, 20)

	seedConversation(t, a, 1, 100, domain.ConversationOpen)
	seedConversation(t, b, 2, 200, domain.ConversationOpen)

	var rows []domain.Conversation
	require.NoError(t, a.Model(&domain.Conversation{}).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0].ID)
	assert.EqualValues(t, 10, rows[0].TenantID)

	var conv domain.Conversation
	assert.ErrorIs(t, a.First(&conv, "id = ?", 2), ErrNotFound)

	n, err := a.Delete(&domain.Conversation{}, "id = ?", 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTenantDBCreateStampsTenant(t *testing.T) {
	db := testutil.NewDB(t)
	tdb := ForTenant(db, 33)

	kw := &domain.Keyword{Keyword: "preco", Response: "R$ 100"}
	require.NoError(t, tdb.Create(kw))
	assert.EqualValues(t, 33, kw.TenantID)

	batch := []domain.Keyword{{Keyword: "a"}, {Keyword: "b"}}
	require.NoError(t, tdb.Create(&batch))
	assert.EqualValues(t, 33, batch[1].TenantID)

	assert.ErrorIs(t, ForTenant(db, 0).Create(&domain.Keyword{Keyword: "x"}), ErrMissingTenantID)
	assert.ErrorIs(t, tdb.Create(&struct{ Name string }{"x"}), ErrNotTenantOwned)
}

func TestConversationRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	seedConversation(t, ForTenant(db, 10), 1, 100, domain.ConversationOpen)
	seedConversation(t, ForTenant(db, 10), 2, 101, domain.ConversationOpen)
	seedConversation(t, ForTenant(db, 20), 3, 200, domain.ConversationOpen)

	repo := NewGormConversationRepository(db)

	_, err := repo.Get(ctx, 20, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.ResetUnread(ctx, 10, 1))
	now := time.Now()
	require.NoError(t, repo.Close(ctx, 10, 1, 77, now))

	conv, err := repo.Get(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationClosed, conv.Status)
	assert.Zero(t, conv.UnreadCount)
	require.NotNil(t, conv.ClosedBy)
	assert.EqualValues(t, 77, *conv.ClosedBy)
	assert.NotNil(t, conv.ClosedAt)

	// a second close keeps the first closer
	assert.ErrorIs(t, repo.Close(ctx, 10, 1, 88, now.Add(time.Minute)), ErrAlreadyClosed)
	conv, err = repo.Get(ctx, 10, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 77, *conv.ClosedBy)

	// other tenant cannot close it
	assert.ErrorIs(t, repo.Close(ctx, 20, 2, 1, now), ErrNotFound)

	rows, total, err := repo.List(ctx, 10, ConversationFilter{Status: domain.ConversationOpen})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.EqualValues(t, 2, rows[0].ID)

	rows, total, err = repo.List(ctx, 10, ConversationFilter{InstanceIDs: []int64{100}, Sort: "id; drop table conversation", Order: "asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.EqualValues(t, 1, rows[0].ID)
}

func TestMessageAndInstanceRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	require.NoError(t, ForTenant(db, 10).Create(&[]domain.Instance{{ID: 100, Name: "a"}, {ID: 101, Name: "b"}}))
	require.NoError(t, ForTenant(db, 20).Create(&domain.Instance{ID: 200, Name: "c"}))

	ids, err := NewGormInstanceRepository(db).ListIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, ids)

	msgs := NewGormMessageRepository(db)
	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, msgs.Create(ctx, &domain.Message{
			ID:             int64(i + 1),
			TenantID:       10,
			ConversationID: 1,
			Content:        "hi",
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}
	rows, total, err := msgs.ListByConversation(ctx, 10, 1, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 1, rows[0].ID)

	_, total, err = msgs.ListByConversation(ctx, 20, 1, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRatingAnswerOnce(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewGormRatingRepository(db)

	rating := &domain.Rating{ID: 5, TenantID: 10, ConversationID: 1, Token: "tok", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, rating))

	got, err := repo.GetByToken(ctx, "tok")
	require.NoError(t, err)
	assert.EqualValues(t, 10, got.TenantID)

	require.NoError(t, repo.Answer(ctx, 5, 4, "bom", time.Now()))
	assert.ErrorIs(t, repo.Answer(ctx, 5, 1, "again", time.Now()), ErrRatingClosed)

	_, err = repo.GetByToken(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSortClause(t *testing.T) {
	allowed := map[string]string{"name": "name"}
	assert.Equal(t, "name ASC", SortClause("name", "asc", allowed, "id"))
	assert.Equal(t, "id DESC", SortClause("1;--", "sideways", allowed, "id"))
}
