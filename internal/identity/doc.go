// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity owns user records and the current session.
//
// Manager is the single writer of the users and sessions collections in the
// encrypted store. Expected failures (bad credentials, lockout, throttling,
// missing permission) come back as Result values carrying a Failure; only
// storage faults are returned as errors, wrapping ErrStorage.
//
// # Login
//
//   - empty username or password: KindValidation
//   - more than 5 attempts per username in 15 minutes: KindRateLimited
//   - unknown user or wrong password: KindInvalidCredentials, worded the same
//   - 5 consecutive failures lock the account for 30 minutes: KindAccountLocked
//   - second factor enabled and no code given: KindMFARequired
//
// Sessions last 8 hours and expire after 2 hours without activity. One
// session is current per process; it is persisted so a CLI login carries
// over to the next invocation.
//
// # Authorization
//
// Roles are ordered admin > technician > readonly. HasPermission and
// CanAccessClient are consulted by the asset directory before every
// per-client operation. Users returns an empty list, not an error, to
// anyone who is not an admin.
package identity
