package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeclimate/internal/types"
)

type fakeBatch struct {
	rows      [][]any
	appendErr error
	sendErr   error
	sent      bool
	aborted   bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error {
	b.sent = true
	return b.sendErr
}

func (b *fakeBatch) Abort() error {
	b.aborted = true
	return nil
}

func newTestArchive(b *fakeBatch, execErr error) (*ClickHouseArchive, *[]string) {
	var queries []string
	return &ClickHouseArchive{
		exec: func(_ context.Context, q string) error {
			queries = append(queries, q)
			return execErr
		},
		prepare: func(_ context.Context, q string) (batch, error) {
			queries = append(queries, q)
			return b, nil
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &queries
}

func TestWriteReadings(t *testing.T) {
	b := &fakeBatch{}
	a, queries := newTestArchive(b, nil)

	ts := time.Date(2025, 7, 16, 10, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	readings := []types.Reading{
		{DeviceID: "dev-1", Timestamp: ts, TempC: types.Float64(23.4), HumidityRH: types.Float64(55)},
		{DeviceID: "dev-2", Timestamp: ts.Add(time.Minute)},
	}

	require.NoError(t, a.WriteReadings(context.Background(), readings))
	assert.True(t, b.sent)
	require.Len(t, b.rows, 2)
	assert.Equal(t, ts.UTC(), b.rows[0][0])
	assert.Equal(t, "dev-1", b.rows[0][1])
	assert.Nil(t, b.rows[1][2].(*float64))
	require.Len(t, *queries, 1)
	assert.True(t, strings.HasPrefix((*queries)[0], "INSERT INTO sensor_readings"))
}

func TestWriteReadings_Empty(t *testing.T) {
	b := &fakeBatch{}
	a, queries := newTestArchive(b, nil)

	require.NoError(t, a.WriteReadings(context.Background(), nil))
	assert.Empty(t, *queries)
	assert.False(t, b.sent)
}

func TestWriteReadings_Errors(t *testing.T) {
	t.Run("append aborts the batch", func(t *testing.T) {
		b := &fakeBatch{appendErr: errors.New("type mismatch")}
		a, _ := newTestArchive(b, nil)
		err := a.WriteReadings(context.Background(), []types.Reading{{DeviceID: "dev-1"}})
		assert.ErrorContains(t, err, "dev-1")
		assert.True(t, b.aborted)
		assert.False(t, b.sent)
	})

	t.Run("send", func(t *testing.T) {
		b := &fakeBatch{sendErr: errors.New("connection reset")}
		a, _ := newTestArchive(b, nil)
		err := a.WriteReadings(context.Background(), []types.Reading{{DeviceID: "dev-1"}})
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestInitSchema(t *testing.T) {
	a, queries := newTestArchive(&fakeBatch{}, nil)
	require.NoError(t, a.InitSchema(context.Background()))
	require.Len(t, *queries, 1)
	assert.Contains(t, (*queries)[0], "CREATE TABLE IF NOT EXISTS sensor_readings")

	failing, _ := newTestArchive(&fakeBatch{}, errors.New("readonly"))
	assert.Error(t, failing.InitSchema(context.Background()))
}

func TestClose_NilConn(t *testing.T) {
	a, _ := newTestArchive(&fakeBatch{}, nil)
	assert.NoError(t, a.Close())
}
