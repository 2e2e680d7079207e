// Package demography provides the empirical age/gender distribution agents are
// drawn from and the age-conditioned death-rate table used by the epidemic layer.
package demography

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Gender of an agent. The age distribution is conditioned on it.
type Gender uint8

const (
	GenderFemale Gender = iota
	GenderMale
)

// String returns the single-letter code used in the distribution table header.
func (g Gender) String() string {
	if g == GenderMale {
		return "M"
	}
	return "F"
}

// ErrEmptyTable is returned when a distribution table has no data rows.
var ErrEmptyTable = errors.New("demography: age table has no rows")

//go:embed data/age_distribution.tsv
var defaultTable []byte

// AgeRow is one line of the distribution table.
type AgeRow struct {
	Age     int
	Total   int
	Males   int
	Females int
}

// AgeTable is the parsed population pyramid.
type AgeTable struct {
	Rows []AgeRow
}

// DefaultAgeTable returns the embedded population pyramid.
func DefaultAgeTable() AgeTable {
	t, err := ParseAgeTable(bytes.NewReader(defaultTable))
	if err != nil {
		panic(fmt.Sprintf("demography: embedded table: %v", err))
	}
	return t
}

// LoadAgeTable reads a distribution table from disk.
func LoadAgeTable(path string) (AgeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return AgeTable{}, fmt.Errorf("open age table: %w", err)
	}
	defer f.Close()
	return ParseAgeTable(f)
}

// ParseAgeTable parses tab-separated rows of age, total, males and females.
// The first line is a header and is skipped.
func ParseAgeTable(r io.Reader) (AgeTable, error) {
	var t AgeTable
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 4 {
			return AgeTable{}, fmt.Errorf("age table line %d: want 4 fields, got %d", line, len(fields))
		}
		var vals [4]int
		for i, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return AgeTable{}, fmt.Errorf("age table line %d: %w", line, err)
			}
			if v < 0 {
				return AgeTable{}, fmt.Errorf("age table line %d: negative value %d", line, v)
			}
			vals[i] = v
		}
		t.Rows = append(t.Rows, AgeRow{Age: vals[0], Total: vals[1], Males: vals[2], Females: vals[3]})
	}
	if err := sc.Err(); err != nil {
		return AgeTable{}, fmt.Errorf("read age table: %w", err)
	}
	if len(t.Rows) == 0 {
		return AgeTable{}, ErrEmptyTable
	}
	return t, nil
}

// Weights returns the gender-specific column as sampling weights, aligned with Ages.
func (t AgeTable) Weights(g Gender) []float64 {
	w := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		if g == GenderMale {
			w[i] = float64(r.Males)
		} else {
			w[i] = float64(r.Females)
		}
	}
	return w
}

// Ages returns the age column.
func (t AgeTable) Ages() []int {
	ages := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		ages[i] = r.Age
	}
	return ages
}

// Contains reports whether age is one of the table's rows.
func (t AgeTable) Contains(age int) bool {
	for _, r := range t.Rows {
		if r.Age == age {
			return true
		}
	}
	return false
}
