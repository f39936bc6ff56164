// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the encrypted key-value store that holds user
// records, sessions and the current-session pointer.
//
// Values are JSON encoded and sealed with AES-256-GCM before they reach
// SQLite. The master key lives in a separate file managed by a
// security.KeyStore, so copying the database alone discloses nothing.
//
// Usage:
//
//	st, enc, err := store.OpenWithKeyFile(ctx, dbPath, keyPath)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	var users []identity.User
//	found, err := st.Get(ctx, "users", &users)
package store
