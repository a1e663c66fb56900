// Package manifest extracts tracking IDs from uploaded manifest, status
// and picklist files.
package manifest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format of an uploaded file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ErrEmpty is returned when a file yields no tracking IDs.
var ErrEmpty = errors.New("no tracking IDs found in the file")

var headerNames = map[string]bool{"tracking id": true, "tracking_id": true, "trackingid": true}

// DetectFormat picks a format from the file name, falling back to sniffing
// the first non-blank byte.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".txt":
		return FormatText
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	if bytes.ContainsRune(trimmed, ',') {
		return FormatCSV
	}
	return FormatText
}

// Parse reads r in the given format and returns the raw tracking IDs in
// file order. IDs are not normalized; the engine does that.
func Parse(r io.Reader, format Format) ([]string, error) {
	var (
		ids []string
		err error
	)
	switch format {
	case FormatCSV:
		ids, err = parseCSV(r)
	case FormatJSON:
		ids, err = parseJSON(r)
	case FormatText:
		ids, err = parseText(r)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrEmpty
	}
	return ids, nil
}

// ParseFile detects the format from filename and parses data.
func ParseFile(filename string, data []byte) ([]string, error) {
	return Parse(bytes.NewReader(data), DetectFormat(filename, data))
}

// parseCSV uses the "Tracking ID" column when a header names it and the
// first column otherwise.
func parseCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col, start := 0, 0
	for i, h := range records[0] {
		if headerNames[strings.ToLower(strings.TrimSpace(h))] {
			col, start = i, 1
			break
		}
	}

	var ids []string
	for _, rec := range records[start:] {
		if col >= len(rec) {
			continue
		}
		id := strings.TrimSpace(rec[col])
		if id == "" || headerNames[strings.ToLower(id)] {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseJSON accepts ["A1", ...], [{"tracking_id": "A1"}, ...] or
// {"tracking_ids": [...]}.
func parseJSON(r io.Reader) ([]string, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	var wrapped struct {
		TrackingIDs []string `json:"tracking_ids"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return compact(wrapped.TrackingIDs), nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("json must be an array or an object with tracking_ids")
	}
	var ids []string
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			ids = append(ids, s)
			continue
		}
		var obj map[string]any
		if json.Unmarshal(item, &obj) != nil {
			continue
		}
		for _, k := range []string{"tracking_id", "Tracking Id", "Tracking ID"} {
			if v, ok := obj[k].(string); ok {
				ids = append(ids, v)
				break
			}
		}
	}
	return compact(ids), nil
}

func parseText(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || headerNames[strings.ToLower(line)] {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ids, nil
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
