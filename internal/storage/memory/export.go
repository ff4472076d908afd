// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Changplay12345/flight-animation/pkg/core"
)

// ReplayExport is the root JSON structure read by the web viewer.
type ReplayExport struct {
	DatasetName   string       `json:"datasetName"`
	Date          string       `json:"date"`
	AirportFilter string       `json:"airportFilter,omitempty"`
	StartMs       int64        `json:"startMs"`
	EndMs         int64        `json:"endMs"`
	Flights       []FlightJSON `json:"flights"`
}

// FlightJSON represents one flight track
type FlightJSON struct {
	Key          string  `json:"key"`
	Callsign     string  `json:"callsign,omitempty"`
	AircraftType string  `json:"aircraftType,omitempty"`
	Departure    string  `json:"departure,omitempty"`
	Destination  string  `json:"destination,omitempty"`
	Positions    [][]any `json:"positions"`
}

// ExportReplay writes a dataset to a JSON replay file in the configured
// output directory and returns its path.
func (b *Backend) ExportReplay(name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.datasets[name]
	if !ok {
		return "", fmt.Errorf("dataset %q not found", name)
	}

	export := buildExport(record)

	filename := strings.ReplaceAll(name, " ", "_")
	filename = strings.ReplaceAll(filename, ":", "_")
	if b.cfg.CompressOutput {
		filename += ".json.gz"
	} else {
		filename += ".json"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return "", err
	}

	b.lastExportPath = outputPath
	return outputPath, nil
}

func buildExport(record *datasetRecord) ReplayExport {
	export := ReplayExport{
		DatasetName:   record.info.Name,
		Date:          record.info.Date,
		AirportFilter: record.info.AirportFilter,
		Flights:       make([]FlightJSON, 0),
	}

	// Samples arrive sorted by flight then time, so tracks are contiguous
	// runs of the same key.
	var current *FlightJSON
	var startMs, endMs int64
	first := true

	flush := func() {
		if current != nil {
			export.Flights = append(export.Flights, *current)
			current = nil
		}
	}

	for _, s := range record.samples {
		if current == nil || current.Key != s.Key {
			flush()
			current = &FlightJSON{
				Key:       s.Key,
				Positions: make([][]any, 0),
			}
			if s.Callsign != nil {
				current.Callsign = *s.Callsign
			}
			if s.AircraftType != nil {
				current.AircraftType = *s.AircraftType
			}
			if s.Origin != nil {
				current.Departure = *s.Origin
			}
			if s.Destination != nil {
				current.Destination = *s.Destination
			}
		}

		current.Positions = append(current.Positions, samplePosition(s))

		if first || s.TimeMs < startMs {
			startMs = s.TimeMs
		}
		if first || s.TimeMs > endMs {
			endMs = s.TimeMs
		}
		first = false
	}
	flush()

	export.StartMs = startMs
	export.EndMs = endMs
	return export
}

// samplePosition encodes one sample as a compact position tuple:
// [timeMs, [lat, lon], heading, altitude, groundSpeed]. Missing values
// encode as null.
func samplePosition(s core.SampleRecord) []any {
	var heading, altitude, groundSpeed any
	if s.Heading != nil {
		heading = *s.Heading
	}
	if s.Altitude != nil {
		altitude = *s.Altitude
	}
	if s.GroundSpeed != nil {
		groundSpeed = *s.GroundSpeed
	}
	return []any{
		s.TimeMs,
		[]float64{s.Lat, s.Lon},
		heading,
		altitude,
		groundSpeed,
	}
}

func writeJSON(path string, data ReplayExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data ReplayExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
