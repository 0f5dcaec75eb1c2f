// Package mysql opens a MySQL or MariaDB backend, the servers DataJoint
// pipelines are usually deployed against.
package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"sessionflow/pkg/domain"
)

// DefaultPort is the MySQL server port used when none is configured.
const DefaultPort = 3306

// Server error numbers for constraint failures.
const (
	errDupEntry         = 1062
	errNoReferencedRow  = 1216
	errRowIsReferenced2 = 1451
	errNoReferencedRow2 = 1452
)

// Config holds connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Addr returns host:port. A host that already carries a port wins.
func (c Config) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

var openDB = sql.OpenDB

// Open connects to the server, creates the database when missing, and
// returns a handle bound to it.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Database != "" {
		if err := ensureDatabase(ctx, cfg); err != nil {
			return nil, err
		}
	}
	connector, err := gomysql.NewConnector(driverConfig(cfg, cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("configure mysql: %w", err)
	}
	db := openDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func ensureDatabase(ctx context.Context, cfg Config) error {
	connector, err := gomysql.NewConnector(driverConfig(cfg, ""))
	if err != nil {
		return fmt.Errorf("configure mysql: %w", err)
	}
	db := openDB(connector)
	defer func() { _ = db.Close() }()
	stmt := "CREATE DATABASE IF NOT EXISTS `" + strings.ReplaceAll(cfg.Database, "`", "``") + "`"
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create database %s: %w", cfg.Database, err)
	}
	return nil
}

func driverConfig(cfg Config, database string) *gomysql.Config {
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Addr()
	mc.DBName = database
	mc.ParseTime = false
	return mc
}

// OverrideOpenDB swaps the connector opener for tests and returns a restore func.
func OverrideOpenDB(fn func(driver.Connector) *sql.DB) func() {
	prev := openDB
	openDB = fn
	return func() { openDB = prev }
}

// Classify wraps constraint failures with the matching domain sentinel.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
		case errNoReferencedRow, errNoReferencedRow2, errRowIsReferenced2:
			return fmt.Errorf("%w: %w", domain.ErrForeignKey, err)
		}
	}
	return err
}
