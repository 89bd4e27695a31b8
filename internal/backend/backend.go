// Package backend opens the ledger store selected by DATA_BACKEND.
package backend

import (
	"context"
	"errors"
	"fmt"

	"contaae/internal/config"
	"contaae/internal/ports"
)

// BackendType names a store implementation.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	return bt == MemoryBackend || bt == SQLiteBackend || bt == PostgresBackend
}

// Config selects the store and carries its connection settings.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
	PostgresURL  string
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("backend: nil app config")
	}
	c := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresURL:  appConfig.PostgresURL,
	}
	if !c.Type.IsValid() {
		return Config{}, fmt.Errorf("backend: unknown DATA_BACKEND %q", appConfig.DataBackend)
	}
	return c, nil
}

// Validate checks that the selected store has what it needs to connect.
func (c Config) Validate() error {
	switch c.Type {
	case MemoryBackend:
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("backend: sqlite needs SQLITE_DB_PATH")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return errors.New("backend: postgres needs POSTGRES_URL")
		}
	default:
		return fmt.Errorf("backend: unknown type %q", c.Type)
	}
	return nil
}

// CleanupFunc releases the connection held by a store.
type CleanupFunc func() error

// BackendResult is an opened store. Cleanup is nil for the memory store.
type BackendResult struct {
	Store   ports.Store
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Pinger is implemented by stores that hold a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
