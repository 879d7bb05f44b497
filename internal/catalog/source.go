package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Format identifies how a catalog blob is encoded.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatSQLite Format = "sqlite"
)

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("%w: unsupported catalog file %q", ErrLoad, path)
	}
}

// sourceRecord mirrors CarModel with a pointer id so a record that omits
// its id is rejected instead of becoming id 0.
type sourceRecord struct {
	ID    *int   `json:"id" yaml:"id"`
	Make  string `json:"make" yaml:"make"`
	Model string `json:"model" yaml:"model"`
}

type decoder interface {
	Decode(v any) error
}

// Load parses a JSON or YAML sequence of {id, make, model} records. The
// source must hold exactly one sequence; trailing data is an error.
func Load(r io.Reader, format Format) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read source: %v", ErrLoad, err)
	}

	var dec decoder
	switch format {
	case FormatJSON:
		dec = json.NewDecoder(bytes.NewReader(data))
	case FormatYAML:
		dec = yaml.NewDecoder(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: format %q cannot be read from a stream", ErrLoad, format)
	}

	var raw []sourceRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrLoad, format, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse %s: trailing data after record sequence", ErrLoad, format)
	}

	if raw == nil {
		return nil, fmt.Errorf("%w: source is not a sequence of records", ErrLoad)
	}

	records := make([]CarModel, 0, len(raw))
	for i, rec := range raw {
		if rec.ID == nil {
			return nil, fmt.Errorf("%w: record %d has no id", ErrLoad, i)
		}
		records = append(records, CarModel{ID: *rec.ID, Make: rec.Make, Model: rec.Model})
	}

	return New(records)
}

// LoadFile loads a catalog from path, choosing the format by extension.
func LoadFile(ctx context.Context, path string) (*Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatSQLite {
		return LoadSQLite(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer f.Close()

	return Load(f, format)
}

// LoadSQLite reads records from the car_models table of a SQLite database.
// The database is closed before returning.
func LoadSQLite(ctx context.Context, path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrLoad, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id, make, model FROM car_models ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query car_models: %v", ErrLoad, err)
	}
	defer rows.Close()

	var records []CarModel
	for rows.Next() {
		var rec CarModel
		if err := rows.Scan(&rec.ID, &rec.Make, &rec.Model); err != nil {
			return nil, fmt.Errorf("%w: scan car_models: %v", ErrLoad, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate car_models: %v", ErrLoad, err)
	}

	return New(records)
}
