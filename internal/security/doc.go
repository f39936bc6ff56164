// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package security holds the credential and secret handling shared by the
identity layer and the CLI.

# Contents

  - password.go - bcrypt hashing, password policy and session tokens
  - ratelimit.go - Per-user failed login windows and lockout
  - encrypt.go, keystore*.go - AES-GCM encryption of stored secrets with a
    platform key store
  - audit.go - Append-only audit log with secret redaction
  - mask.go - Masking of identifiers and tokens in logs
*/
package security
