package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCycleSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newRepositoryWithDB(db)

	snapshot := &CycleSnapshot{
		Timestamp:           time.Unix(1724400000, 0),
		CPUTemp:             55,
		GPUTemp:             47,
		WakeSent:            true,
		Outcome:             "success",
		ConsecutiveFailures: 0,
	}

	mock.ExpectExec("INSERT INTO cycles").
		WithArgs(int64(1724400000), 55, 47, 1, "success", 0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Store(context.Background(), snapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePropagatesErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newRepositoryWithDB(db)

	mock.ExpectExec("INSERT INTO cycles").
		WillReturnError(assert.AnError)

	err = repo.Store(context.Background(), &CycleSnapshot{Timestamp: time.Now()})
	require.Error(t, err)
}

func TestCloseRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectClose()

	repo := newRepositoryWithDB(db)
	require.NoError(t, repo.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceRejectsNilSnapshot(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := &service{repo: newRepositoryWithDB(db)}

	err = svc.Record(context.Background(), nil)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, DefaultConfig().Validate())
}
