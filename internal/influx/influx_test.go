package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/config"
)

func TestSavePoint(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	line := influxdb2_write.PointToLineProtocol(
		SavePoint("c1", "vtt_scenes", 120, 15*time.Millisecond, nil, at), time.Nanosecond)

	assert.True(t, strings.HasPrefix(line, MeasurementSave+",campaign=c1,tool=vtt_scenes "))
	assert.Contains(t, line, "bytes=120i")
	assert.Contains(t, line, "ok=true")
	assert.NotContains(t, line, "error=")
}

func TestSavePointWithError(t *testing.T) {
	line := influxdb2_write.PointToLineProtocol(
		SavePoint("c1", "vtt_scenes", 0, time.Millisecond, errors.New("boom"), time.Now()), time.Nanosecond)

	assert.Contains(t, line, "ok=false")
	assert.Contains(t, line, `error="boom"`)
}

func TestConnectDisabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	assert.Error(t, m.Connect(context.Background(), config.InfluxConfig{Enabled: false}))
}

func TestWritePointWithoutWriter(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	assert.Error(t, m.WritePoint(context.Background(), SavePoint("c1", "t", 1, 0, nil, time.Now())))
}

func TestBackupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx.gz")
	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.UseBackup())

	m.RecordSave(context.Background(), "c1", "vtt_scenes", 42, time.Millisecond, nil)
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	assert.Contains(t, string(data), "campaign=c1")
	assert.Contains(t, string(data), "bytes=42i")
}
