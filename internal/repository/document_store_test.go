package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

func TestSelectSQLFiltersAndOrder(t *testing.T) {
	q := models.Query{Collection: models.CollectionActivities}.
		Where("userId", models.OpEq, "u1").
		Where("date", models.OpGte, "2024-05-01").
		OrderBy("createdAt", true)

	query, args, err := activitySchema.selectSQL(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, user_id, type, title, description, date, created_at FROM activities WHERE user_id = $1 AND date >= $2 ORDER BY created_at DESC, id ASC", query)
	assert.Equal(t, []interface{}{"u1", "2024-05-01"}, args)
}

func TestSelectSQLRejectsUnknownFieldsAndOps(t *testing.T) {
	_, _, err := activitySchema.selectSQL(models.Query{}.Where("password", models.OpEq, "x"))
	assert.ErrorIs(t, err, ErrUnsupportedField)

	_, _, err = activitySchema.selectSQL(models.Query{}.Where("date", "!=", "x"))
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	_, _, err = eventSchema.selectSQL(models.Query{}.OrderBy("title; DROP TABLE events", false))
	assert.ErrorIs(t, err, ErrUnsupportedField)
}

func TestDocumentStoreQueryDispatchesByCollection(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewDocumentStore(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, date, description, club_name, created_at FROM events WHERE date >= $1 ORDER BY id ASC")).
		WithArgs("2024-05-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "date", "description", "club_name", "created_at"}).
			AddRow("e1", "Science Fair", "2024-05-03", "Hall A", nil, now))

	res, err := store.Query(context.Background(), models.Query{Collection: models.CollectionEvents}.Where("date", models.OpGte, "2024-05-01"))
	require.NoError(t, err)
	events, ok := res.([]models.Event)
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, "2024-05-03", events[0].Date.String())
	assert.Nil(t, events[0].ClubName)

	_, err = store.Query(context.Background(), models.Query{Collection: "grades"})
	assert.ErrorIs(t, err, ErrUnsupportedField)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryUpdateAndDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE activities SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM activities WHERE id = $1")).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Activity{ID: "a1", OwnerID: "u2", Title: "x"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, repo.Delete(context.Background(), "a1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
