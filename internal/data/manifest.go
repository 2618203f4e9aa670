package data

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Manifest maps (kind, symbol) -> filename for the CSVs in a data directory,
// per spec §6 ("A manifest.json alongside the CSVs maps (kind, symbol) -> filename").
type Manifest struct {
	// Files maps kind (perp|price|lending|vault|lp|pendle|options) -> symbol -> filename.
	Files map[string]map[string]string `json:"files"`
}

// LookupFile returns the filename registered for (kind, symbol), or an error if absent.
func (m *Manifest) LookupFile(kind, symbol string) (string, error) {
	bySymbol, ok := m.Files[kind]
	if !ok {
		return "", fmt.Errorf("manifest: no entries for kind %q", kind)
	}
	filename, ok := bySymbol[symbol]
	if !ok {
		return "", fmt.Errorf("manifest: no file for kind %q symbol %q", kind, symbol)
	}
	return filename, nil
}

// LoadManifest reads manifest.json from a data directory.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()
	return DecodeManifest(f)
}

// DecodeManifest decodes a manifest.json body from an arbitrary reader.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if m.Files == nil {
		m.Files = make(map[string]map[string]string)
	}
	return &m, nil
}

// WriteManifest writes manifest.json to a data directory.
func WriteManifest(path string, m *Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// OptionsCsvRow reuses the Markowitz-compatible options schema referenced in spec §6.
type OptionsCsvRow struct {
	Timestamp       int64
	UnderlyingPrice float64
	Strike          float64
	ImpliedVol      float64
	PremiumReceived float64
	DaysToExpiry    int64
}
