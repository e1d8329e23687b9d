package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"go-monopoly/entities"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementRepoSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ended := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settlements")).
		WithArgs("g1", "0xabc", 2, 6.4, `[{"wallet_addr":"0xabc","usdt":6.4}]`, ended).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewSettlementRepo(db)
	err = repo.Save(context.Background(), entities.Settlement{
		GameID: "g1", Winner: "0xabc", Players: 2, TotalUSDT: 6.4,
		Payouts: `[{"wallet_addr":"0xabc","usdt":6.4}]`, EndedAt: ended,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepoSaveError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO settlements").WillReturnError(errors.New("disk full"))
	err = NewSettlementRepo(db).Save(context.Background(), entities.Settlement{GameID: "g1"})
	assert.ErrorContains(t, err, "disk full")
}

func TestSettlementRepoRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ended := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"game_id", "winner", "players", "total_usdt", "payouts", "ended_at"}).
		AddRow("g2", "0xdef", 3, 12.0, "[]", ended).
		AddRow("g1", "0xabc", 2, 6.4, "[]", ended.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT game_id, winner")).WithArgs(10).WillReturnRows(rows)

	got, err := NewSettlementRepo(db).Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g2", got[0].GameID)
	assert.Equal(t, 3, got[0].Players)
	assert.Equal(t, ended, got[0].EndedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepoMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS settlements")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewSettlementRepo(db).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
