package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionflow/pkg/domain"
)

func TestAddr(t *testing.T) {
	assert.Equal(t, "localhost:3306", Config{}.Addr())
	assert.Equal(t, "db.example.org:3307", Config{Host: "db.example.org", Port: 3307}.Addr())
	assert.Equal(t, "tutorial-db:3306", Config{Host: "tutorial-db:3306", Port: 9999}.Addr())
}

func TestOpenCreatesDatabase(t *testing.T) {
	boot, bootMock, err := sqlmock.New()
	require.NoError(t, err)
	main, mainMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer main.Close()

	bootMock.ExpectExec("CREATE DATABASE IF NOT EXISTS `neuro_pipeline`").WillReturnResult(sqlmock.NewResult(0, 1))
	bootMock.ExpectClose()
	mainMock.ExpectPing()

	var calls int
	restore := OverrideOpenDB(func(driver.Connector) *sql.DB {
		calls++
		if calls == 1 {
			return boot
		}
		return main
	})
	defer restore()

	db, err := Open(context.Background(), Config{Host: "localhost", User: "root", Password: "simple", Database: "neuro_pipeline"})
	require.NoError(t, err)
	assert.Same(t, main, db)
	assert.Equal(t, 2, calls)
	require.NoError(t, bootMock.ExpectationsWereMet())
	require.NoError(t, mainMock.ExpectationsWereMet())
}

func TestOpenCreateDatabaseFailure(t *testing.T) {
	boot, bootMock, err := sqlmock.New()
	require.NoError(t, err)
	bootMock.ExpectExec("CREATE DATABASE").WillReturnError(&gomysql.MySQLError{Number: 1044, Message: "access denied"})
	bootMock.ExpectClose()

	restore := OverrideOpenDB(func(driver.Connector) *sql.DB { return boot })
	defer restore()

	_, err = Open(context.Background(), Config{Database: "neuro_pipeline"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create database neuro_pipeline")
}

func TestOpenPingFailure(t *testing.T) {
	main, mainMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mainMock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mainMock.ExpectClose()

	restore := OverrideOpenDB(func(driver.Connector) *sql.DB { return main })
	defer restore()

	_, err = Open(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping mysql")
}

func TestDriverConfig(t *testing.T) {
	mc := driverConfig(Config{Host: "db", User: "u", Password: "p"}, "x")
	assert.Equal(t, "tcp", mc.Net)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "x", mc.DBName)
	assert.False(t, mc.ParseTime)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))
	assert.ErrorIs(t, Classify(&gomysql.MySQLError{Number: 1062}), domain.ErrDuplicate)
	assert.ErrorIs(t, Classify(&gomysql.MySQLError{Number: 1452}), domain.ErrForeignKey)
	assert.ErrorIs(t, Classify(&gomysql.MySQLError{Number: 1451}), domain.ErrForeignKey)
	other := &gomysql.MySQLError{Number: 1146}
	assert.Equal(t, error(other), Classify(other))
}
