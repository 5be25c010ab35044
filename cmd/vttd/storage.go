package main

import (
	"fmt"

	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/internal/storage/memory"
	pgstorage "github.com/tablekeep/vtt/internal/storage/postgres"
	sqlitestorage "github.com/tablekeep/vtt/internal/storage/sqlite"
	wsstorage "github.com/tablekeep/vtt/internal/storage/websocket"
)

// openStorage creates and initializes the configured backend.
func openStorage(storageCfg config.StorageConfig) (storage.Backend, error) {
	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		return nil, err
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(config.GetDBConfig(), Logger, DBLogger), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			Path: storageCfg.SQLite.Path,
		}, Logger, DBLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "path", storageCfg.SQLite.Path)
		return backend, nil

	case "websocket":
		hubCfg := config.GetHubConfig()
		Logger.Info("WebSocket storage backend initialized", "url", hubCfg.URL)
		return wsstorage.New(wsstorage.Config{
			URL:    hubCfg.URL,
			Secret: hubCfg.Secret,
		}, Logger), nil

	case "", "memory":
		Logger.Info("Memory storage backend initialized")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
