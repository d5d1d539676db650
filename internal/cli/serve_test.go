// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/internal/config"
)

func TestOpenStoresMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = "memory"

	db, err := openStores(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.NotNil(t, db.accounts)
	assert.NotNil(t, db.credentials)
	assert.NotNil(t, db.ceremonies)
	assert.NotNil(t, db.sessions)
	assert.Nil(t, db.sqlite)
}

func TestOpenStoresSQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "passkey.db")

	db, err := openStores(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.NotNil(t, db.sqlite)
	assert.NoError(t, db.sqlite.DB().Ping())
}

func TestOpenStoresUnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = "etcd"

	_, err := openStores(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}
