package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	original := pageCursor{
		CreatedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		ID:        "7c9e6679-7425-40de-944b-e07fc1f90ae7",
	}

	decoded, err := decodeCursor(encodeCursor(original))

	require.NoError(t, err)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, original.ID, decoded.ID)
}

func TestCursor_Opaqueness(t *testing.T) {
	encoded := encodeCursor(pageCursor{CreatedAt: time.Now().UTC(), ID: "id-1"})

	// URL-safe with no padding, so it can travel in a query string untouched.
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
}

func TestDecodeCursor_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"base64 but not json", "bm90LWpzb24"},
		{"json with empty id", encodeCursor(pageCursor{CreatedAt: time.Now().UTC()})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeCursor(tc.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "malformed cursor")
		})
	}
}
