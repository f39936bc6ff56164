// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package directory stores clients and their assets.

Each client owns one asset table, named after the client's slug ID
(assets_<id>). A Backend reaches the tables over SQLite or PostgreSQL; the
Directory in front of it checks every call against the signed-in user's role
and client assignments before touching storage.

	backend, err := directory.Open(ctx, directory.Settings{Driver: directory.DriverSQLite, SQLitePath: path})
	dir := directory.New(backend, identityManager)
	clients, err := dir.ListClients(ctx)
	asset, err := dir.FindByBarcode(ctx, clients[0].ID, "4006381333931")
*/
package directory
