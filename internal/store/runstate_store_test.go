package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return &MySQLStore{db: gormDB}, mock
}

func TestSaveBacktestResult(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `backtest_results`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result := &model.BacktestResult{InitialCapital: 10000, FinalTVL: 10500, NetPnL: 500}
	require.NoError(t, store.SaveBacktestResult("wf-1", result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNames(t *testing.T) {
	require.Equal(t, "run_states", RunStateRecord{}.TableName())
	require.Equal(t, "backtest_results", BacktestResultRecord{}.TableName())
}
