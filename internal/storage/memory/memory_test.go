package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Changplay12345/flight-animation/internal/config"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

func ptr[T any](v T) *T { return &v }

func testRecords() []core.SampleRecord {
	return []core.SampleRecord{
		{Key: "f2", TimeMs: 2000, Lat: 2, Lon: 2},
		{Key: "f1", TimeMs: 1000, Lat: 1, Lon: 1, Callsign: ptr("KAL1"), Origin: ptr("RKSI")},
		{Key: "f1", TimeMs: 500, Lat: 0.5, Lon: 0.5, Callsign: ptr("KAL1")},
		{Key: "f2", TimeMs: 1500, Lat: 1.5, Lon: 1.5, Altitude: ptr(30000.0)},
	}
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func TestCreateDataset(t *testing.T) {
	b := newTestBackend(t)

	info, err := b.CreateDataset("flight_data_20250101", "2025-01-01", "", testRecords())
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.SampleCount)
	assert.Equal(t, "2025-01-01", info.Date)
}

func TestCreateDataset_DuplicateName(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.CreateDataset("d", "2025-01-01", "", nil)
	require.NoError(t, err)

	_, err = b.CreateDataset("d", "2025-01-02", "", nil)
	assert.Error(t, err)
}

func TestListDatasets_CreationOrder(t *testing.T) {
	b := newTestBackend(t)

	b.CreateDataset("b-second", "2025-01-02", "", nil)
	b.CreateDataset("a-first", "2025-01-01", "RKSI", nil)

	infos, err := b.ListDatasets()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "b-second", infos[0].Name)
	assert.Equal(t, "a-first", infos[1].Name)
	assert.Equal(t, "RKSI", infos[1].AirportFilter)
}

func TestLoadSamples_SortedByFlightAndTime(t *testing.T) {
	b := newTestBackend(t)
	b.CreateDataset("d", "2025-01-01", "", testRecords())

	samples, err := b.LoadSamples("d")
	require.NoError(t, err)
	require.Len(t, samples, 4)

	assert.Equal(t, "f1", samples[0].Key)
	assert.Equal(t, int64(500), samples[0].TimeMs)
	assert.Equal(t, "f1", samples[1].Key)
	assert.Equal(t, int64(1000), samples[1].TimeMs)
	assert.Equal(t, "f2", samples[2].Key)
	assert.Equal(t, int64(1500), samples[2].TimeMs)
}

func TestLoadSamples_Missing(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.LoadSamples("nope")
	assert.Error(t, err)
}

func TestDeleteDataset(t *testing.T) {
	b := newTestBackend(t)
	b.CreateDataset("d", "2025-01-01", "", testRecords())

	require.NoError(t, b.DeleteDataset("d"))

	infos, _ := b.ListDatasets()
	assert.Empty(t, infos)
	_, err := b.LoadSamples("d")
	assert.Error(t, err)

	assert.Error(t, b.DeleteDataset("d"))
}

func TestCountSamples(t *testing.T) {
	b := newTestBackend(t)
	b.CreateDataset("d", "2025-01-01", "", testRecords())

	n, err := b.CountSamples("d")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPreviewSamples_TimeOrderedAndLimited(t *testing.T) {
	b := newTestBackend(t)
	b.CreateDataset("d", "2025-01-01", "", testRecords())

	samples, err := b.PreviewSamples("d", 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, int64(500), samples[0].TimeMs)
	assert.Equal(t, int64(1000), samples[1].TimeMs)
}

func TestExportReplay(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, b.Init())

	b.CreateDataset("flight_data_20250101_RKSI", "2025-01-01", "RKSI", testRecords())

	path, err := b.ExportReplay("flight_data_20250101_RKSI")
	require.NoError(t, err)
	assert.Equal(t, path, b.GetLastExportPath())
	assert.Equal(t, filepath.Join(dir, "flight_data_20250101_RKSI.json"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var export ReplayExport
	require.NoError(t, json.NewDecoder(f).Decode(&export))

	assert.Equal(t, "flight_data_20250101_RKSI", export.DatasetName)
	assert.Equal(t, "RKSI", export.AirportFilter)
	assert.Equal(t, int64(500), export.StartMs)
	assert.Equal(t, int64(2000), export.EndMs)
	require.Len(t, export.Flights, 2)

	f1 := export.Flights[0]
	assert.Equal(t, "f1", f1.Key)
	assert.Equal(t, "KAL1", f1.Callsign)
	require.Len(t, f1.Positions, 2)
}

func TestExportReplay_Compressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.Init())

	b.CreateDataset("d", "2025-01-01", "", testRecords())

	path, err := b.ExportReplay("d")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "d.json.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export ReplayExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Len(t, export.Flights, 2)
}

func TestExportReplay_Missing(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.ExportReplay("nope")
	assert.Error(t, err)
}
