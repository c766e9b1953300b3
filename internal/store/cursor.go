package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// pageCursor marks the position to resume a paginated listing from. Products
// are ordered by (created_at DESC, id DESC); the cursor carries the sort key
// of the last row of the previous page. Callers see it only as an opaque
// base64 token.
type pageCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func encodeCursor(c pageCursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(token string) (pageCursor, error) {
	var c pageCursor
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, fmt.Errorf("store: malformed cursor: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("store: malformed cursor: %w", err)
	}
	if c.ID == "" {
		return c, fmt.Errorf("store: malformed cursor: missing position")
	}
	return c, nil
}
