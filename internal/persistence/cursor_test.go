package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthprofile/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &domain.Cursor{StartAt: time.Date(2024, 3, 1, 7, 30, 0, 123, time.UTC), ID: "w-1"}
	token := EncodeCursor(c)
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.True(t, c.StartAt.Equal(decoded.StartAt))
	require.Equal(t, "w-1", decoded.ID)
}

func TestDecodeCursorEmpty(t *testing.T) {
	c, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)
	require.Equal(t, "", EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not base64!")
	require.Error(t, err)

	_, err = DecodeCursor("bm8tc2VwYXJhdG9y") // "no-separator"
	require.Error(t, err)
}

func TestPageSize(t *testing.T) {
	require.Equal(t, DefaultWorkoutPageSize, PageSize(0))
	require.Equal(t, 10, PageSize(10))
	require.Equal(t, 500, PageSize(10_000))
}
