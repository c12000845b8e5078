package grants

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mitchellh/go-homedir"
)

// Header is the fixed first row of every grants CSV.
var Header = []string{"ID", "Link", "Funding", "Deadline"}

// Encode writes the header and one row per grant.
func Encode(w io.Writer, b Batch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, g := range b.Grants {
		if err := cw.Write([]string{strconv.Itoa(g.ID), g.URL, g.Funding, g.Deadline}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads a CSV written by Encode.
func Decode(r io.Reader) (Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Batch{}, fmt.Errorf("grants csv is empty")
	}
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read grants csv header: %w", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return Batch{}, fmt.Errorf("unexpected grants csv header %v", header)
		}
	}

	b := Batch{Grants: []Record{}}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return b, nil
		}
		if err != nil {
			return Batch{}, fmt.Errorf("failed to read grants csv: %w", err)
		}
		id, err := strconv.Atoi(row[0])
		if err != nil {
			return Batch{}, fmt.Errorf("invalid grant id %q: %w", row[0], err)
		}
		b.Grants = append(b.Grants, Record{ID: id, URL: row[1], Funding: row[2], Deadline: row[3]})
	}
}

// WriteCSV replaces the file at path with the batch. A leading ~ is expanded.
// The data goes to a temporary file first so a failed write leaves the old file intact.
func WriteCSV(path string, b Batch) (string, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand output path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, b); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write grants csv: %w", err)
	}
	// CreateTemp makes the file 0600; keep the mode of the file being replaced.
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to set grants csv permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write grants csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return path, nil
}

// ReadCSV loads a batch written by WriteCSV.
func ReadCSV(path string) (Batch, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to expand path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, err
	}
	defer f.Close()
	return Decode(f)
}
