// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaskIdentifier returns a stable, non-reversible tag for an identifier so
// that logs can correlate attempts without recording usernames.
func MaskIdentifier(id string) string {
	hash := sha256.Sum256([]byte(id))
	return "hash:" + hex.EncodeToString(hash[:])[:12]
}

// MaskToken shortens a session token for display, keeping only a prefix.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:8] + "****"
}
