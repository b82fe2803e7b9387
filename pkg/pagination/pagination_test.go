package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, DefaultLimit, Clamp(0))
	assert.Equal(t, DefaultLimit, Clamp(-4))
	assert.Equal(t, MaxLimit, Clamp(1000))
	assert.Equal(t, 10, Clamp(10))
}

func TestCursorTokenIsURLSafe(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 9, 1, 10, 0, 0, 123, time.FixedZone("x", 3600)), ID: uuid.New()}
	token := in.Encode()
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")

	out, err := Decode(token)
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, time.UTC, out.CreatedAt.Location())
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeRejectsForeignTokens(t *testing.T) {
	out, err := Decode("  ")
	require.NoError(t, err)
	assert.Nil(t, out)

	for _, token := range []string{
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("2026-09-01|abc")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"t":"2026-09-01T00:00:00Z"}`)),
	} {
		_, err := Decode(token)
		assert.Error(t, err, token)
	}
}

func TestTrim(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]row, 4)
	for i := range rows {
		rows[i] = row{id: uuid.New(), at: base.Add(-time.Duration(i) * time.Minute)}
	}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 3, key)
	assert.Len(t, page, 3)
	cursor, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, rows[2].id, cursor.ID)

	page, next = Trim(rows[:2], 3, key)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}
