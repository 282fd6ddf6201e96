package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelRepositoryRoundTrip(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	repo := NewPanelRepository(conn)

	mock.ExpectExec("INSERT INTO panel_entries").
		WithArgs("g1", "c1", "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT channel_id, message_id").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"channel_id", "message_id"}).AddRow("c1", "m1"))
	mock.ExpectExec("DELETE FROM panel_entries").
		WithArgs("g1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, PanelEntry{GuildID: "g1", ChannelID: "c1", MessageID: "m1"}))

	entry, ok, err := repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "m1", entry.MessageID)

	require.NoError(t, repo.Delete(ctx, "g1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPanelRepositoryIgnoresIncompleteEntries(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	repo := NewPanelRepository(conn)
	require.NoError(t, repo.Upsert(context.Background(), PanelEntry{GuildID: "g1"}))

	var nilRepo *PanelRepository
	_, ok, err := nilRepo.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	for range migrations {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), conn))
	assert.NoError(t, mock.ExpectationsWereMet())
}
