// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

// Package sec provides security-adjacent primitives for the session gateway.
//
// # Architecture
//
// The gateway never mints or verifies tokens itself; the BASMS backend owns
// signing keys. This package is limited to two concerns:
//
//   - Peeking at unverified JWT claims to recover expiry/identity hints that
//     the backend response omitted.
//   - Hashing token material so audit rows and logs never carry raw secrets.
package sec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Unverified Claim Inspection

// PeekedClaims holds the subset of JWT claims the gateway cares about.
//
// The values are UNVERIFIED: the gateway has no public key and treats them as
// hints only (e.g. to schedule renewal), never as proof of identity.
type PeekedClaims struct {
	// Subject is the 'sub' claim, usually the user ID.
	Subject string

	// ExpiresAt is the 'exp' claim as an absolute instant. Zero when absent.
	ExpiresAt time.Time
}

// PeekClaims parses a JWT without verifying its signature and extracts the
// registered claims the session layer uses.
func PeekClaims(tokenString string) (*PeekedClaims, error) {
	claims := jwt.RegisteredClaims{}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return nil, fmt.Errorf("sec: failed to parse token: %w", err)
	}

	peeked := &PeekedClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		peeked.ExpiresAt = claims.ExpiresAt.Time
	}

	return peeked, nil
}

// PeekExpiry returns the 'exp' claim of an unverified JWT.
// The zero time is returned when the token is unparseable or carries no expiry.
func PeekExpiry(tokenString string) time.Time {
	claims, err := PeekClaims(tokenString)
	if err != nil {
		return time.Time{}
	}
	return claims.ExpiresAt
}

// # Token Hashing

// HashToken returns the hex-encoded SHA-256 digest of a token.
//
// Audit rows and log lines reference tokens only through this digest so a
// leaked audit trail cannot be replayed against the backend.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
