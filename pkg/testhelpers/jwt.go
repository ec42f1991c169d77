// Package testhelpers provides utilities for testing fiscal-engine components.
package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSecret is the signing secret shared by tests that issue and verify tokens.
const TestSecret = "test-session-secret-0123456789abcdef"

// GenerateTestJWT signs an HS256 session token for the given user and role
// with TestSecret. Location ids may be empty.
func GenerateTestJWT(sub, role, districtID, tehsilID, villageID string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"iss":  "fiscal-engine",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	if districtID != "" {
		claims["did"] = districtID
	}
	if tehsilID != "" {
		claims["tid"] = tehsilID
	}
	if villageID != "" {
		claims["vid"] = villageID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

// GenerateTestJWTWithBearer returns the token with "Bearer " prefix for the Authorization header.
func GenerateTestJWTWithBearer(sub, role string) string {
	return "Bearer " + GenerateTestJWT(sub, role, "", "", "")
}
