package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid dataset")

// Load reads, validates and normalizes a dataset file.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Decode parses a dataset from r. Reservations without a time get
// DefaultTime.
func Decode(r io.Reader) (*Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if ds.Diners == nil {
		return nil, fmt.Errorf("%w: missing diners", ErrInvalid)
	}
	for i := range ds.Diners {
		for j := range ds.Diners[i].Reservations {
			if ds.Diners[i].Reservations[j].Time == "" {
				ds.Diners[i].Reservations[j].Time = DefaultTime
			}
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks the required fields of every record.
func (ds *Dataset) Validate() error {
	var errs []error
	for i := range ds.Diners {
		d := &ds.Diners[i]
		where := fmt.Sprintf("diner %d", i)
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else {
			where = fmt.Sprintf("diner %d (%s)", i, d.Name)
		}

		for j, rv := range d.Reviews {
			if rv.Rating < 1 || rv.Rating > 5 {
				errs = append(errs, fmt.Errorf("%s: review %d: rating %d out of range 1-5", where, j, rv.Rating))
			}
			if rv.Date.IsZero() {
				errs = append(errs, fmt.Errorf("%s: review %d: date is required", where, j))
			}
		}
		for j, res := range d.Reservations {
			if res.Date.IsZero() {
				errs = append(errs, fmt.Errorf("%s: reservation %d: date is required", where, j))
			}
			if res.NumberOfPeople < 1 {
				errs = append(errs, fmt.Errorf("%s: reservation %d: number_of_people must be at least 1", where, j))
			}
			for k, o := range res.Orders {
				if strings.TrimSpace(o.Item) == "" {
					errs = append(errs, fmt.Errorf("%s: reservation %d: order %d: item is required", where, j, k))
				}
			}
		}
		for j, e := range d.Emails {
			if e.Date.IsZero() {
				errs = append(errs, fmt.Errorf("%s: email %d: date is required", where, j))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Encode writes ds as indented JSON.
func Encode(w io.Writer, ds *Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}

// Save writes ds to path through a temporary file in the same directory,
// so readers never see a partial file.
func Save(path string, ds *Dataset) error {
	var buf bytes.Buffer
	if err := Encode(&buf, ds); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
