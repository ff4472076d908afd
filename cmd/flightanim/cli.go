package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/Changplay12345/flight-animation/internal/api"
	"github.com/Changplay12345/flight-animation/internal/config"
	"github.com/Changplay12345/flight-animation/internal/storage"
	"github.com/Changplay12345/flight-animation/internal/storage/memory"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

func listDatasets() error {
	datasets, err := storageBackend.ListDatasets()
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		fmt.Println("No datasets stored.")
		return nil
	}

	fmt.Printf("%-32s %-12s %-8s %12s\n", "NAME", "DATE", "AIRPORT", "SAMPLES")
	for _, ds := range datasets {
		airport := ds.AirportFilter
		if airport == "" {
			airport = "-"
		}
		fmt.Printf("%-32s %-12s %-8s %12d\n", ds.Name, ds.Date, airport, ds.SampleCount)
	}
	return nil
}

// readSampleFile reads a JSON (optionally gzipped) array of sample records.
func readSampleFile(path string) ([]core.SampleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sample file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var records []core.SampleRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding sample file: %w", err)
	}
	return records, nil
}

func importSamples(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: import <name> <date> <file> [airport]")
	}
	name, date, path := args[0], args[1], args[2]
	airport := ""
	if len(args) > 3 {
		airport = args[3]
	}

	records, err := readSampleFile(path)
	if err != nil {
		return err
	}
	Logger.Info("Read sample file", "path", path, "records", len(records))

	info, err := storageBackend.CreateDataset(name, date, airport, records)
	if err != nil {
		return err
	}
	fmt.Printf("Created dataset %s (%d samples)\n", info.Name, info.SampleCount)
	return nil
}

func previewDataset(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: preview <name> [limit]")
	}
	limit := 10
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad limit %q: %w", args[1], err)
		}
		limit = n
	}

	records, err := storageBackend.PreviewSamples(args[0], limit)
	if err != nil {
		return err
	}
	for _, r := range records {
		callsign := "-"
		if r.Callsign != nil {
			callsign = *r.Callsign
		}
		alt := "-"
		if r.Altitude != nil {
			alt = fmt.Sprintf("%.0f", *r.Altitude)
		}
		fmt.Printf("%-20s %13d %10.5f %11.5f %8s %8s\n",
			r.Key, r.TimeMs, r.Lat, r.Lon, callsign, alt)
	}
	return nil
}

func deleteDataset(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <name>")
	}
	if err := storageBackend.DeleteDataset(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted dataset %s\n", args[0])
	return nil
}

// sampleSpan returns the earliest and latest timestamps in records.
// Both seed from the first record so the span is right even when every
// timestamp is negative.
func sampleSpan(records []core.SampleRecord) (startMs, endMs int64) {
	for i, r := range records {
		if i == 0 || r.TimeMs < startMs {
			startMs = r.TimeMs
		}
		if i == 0 || r.TimeMs > endMs {
			endMs = r.TimeMs
		}
	}
	return startMs, endMs
}

func findDatasetInfo(name string) (core.DatasetInfo, error) {
	datasets, err := storageBackend.ListDatasets()
	if err != nil {
		return core.DatasetInfo{}, err
	}
	for _, ds := range datasets {
		if ds.Name == name {
			return ds, nil
		}
	}
	return core.DatasetInfo{}, fmt.Errorf("dataset not found: %s", name)
}

// exportDataset writes the replay file and returns its path. Backends that
// cannot export directly are staged through the memory backend.
func exportDataset(name string) (string, core.DatasetInfo, error) {
	info, err := findDatasetInfo(name)
	if err != nil {
		return "", core.DatasetInfo{}, err
	}

	if exp, ok := storageBackend.(storage.Exportable); ok {
		path, err := exp.ExportReplay(name)
		return path, info, err
	}

	records, err := storageBackend.LoadSamples(name)
	if err != nil {
		return "", info, err
	}

	mem := memory.New(config.GetStorageConfig().Memory)
	if _, err := mem.CreateDataset(info.Name, info.Date, info.AirportFilter, records); err != nil {
		return "", info, err
	}
	path, err := mem.ExportReplay(name)
	return path, info, err
}

func exportReplay(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: export <name>")
	}
	path, _, err := exportDataset(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Wrote replay to %s\n", path)
	return nil
}

func uploadReplay(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: upload <name> [tag]")
	}
	name := args[0]
	tag := ""
	if len(args) > 1 {
		tag = args[1]
	}

	path, info, err := exportDataset(name)
	if err != nil {
		return err
	}

	records, err := storageBackend.LoadSamples(name)
	if err != nil {
		return err
	}
	startMs, endMs := sampleSpan(records)

	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := client.Healthcheck(); err != nil {
		return fmt.Errorf("viewer unreachable: %w", err)
	}

	err = client.Upload(path, core.UploadMetadata{
		DatasetName:   info.Name,
		Date:          info.Date,
		AirportFilter: info.AirportFilter,
		DurationMs:    endMs - startMs,
		Tag:           tag,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s\n", path)
	return nil
}
