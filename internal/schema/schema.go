// Package schema loads and validates the declarative column schema that
// drives record generation. The schema is loaded once at startup and
// read-only afterwards.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DataType classifies how a column's values are synthesized.
type DataType string

const (
	TypeString  DataType = "String"
	TypeNumeric DataType = "Numeric"
	TypeDate    DataType = "Date"
	TypeOther   DataType = "Other"
)

// ErrDuplicateOrdinal indicates two columns declare the same output position.
var ErrDuplicateOrdinal = errors.New("duplicate ordinal")

// RawSpec is the on-disk JSON shape of one column definition. All fields are
// strings, flags use "1"/"true".
type RawSpec struct {
	DataType        string `json:"DataType"`
	Format          string `json:"Format,omitempty"`
	Order           string `json:"Order"`
	ExcelColumnName string `json:"ExcelColumnName"`
	IsDate          string `json:"IsDate,omitempty"`
	IsDouble        string `json:"IsDouble,omitempty"`
	IsInteger       string `json:"IsInteger,omitempty"`
}

// ColumnSpec is one parsed schema entry. Format is interpreted per DataType:
// max length for String, date pattern for Date.
type ColumnSpec struct {
	DataType   DataType
	Format     string
	Ordinal    int
	OutputName string
	IsInteger  bool
	IsDouble   bool
}

// LoadFile reads a JSON array of column definitions from path. Malformed JSON
// is a fatal configuration error; nothing is generated afterwards.
func LoadFile(path string) ([]ColumnSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var raw []RawSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed schema JSON in %s: %w", path, err)
	}

	return Load(raw)
}

// Load parses, validates and sorts raw column definitions. The three steps
// always run in sequence; any failure aborts before generation starts.
func Load(raw []RawSpec) ([]ColumnSpec, error) {
	specs := make([]ColumnSpec, 0, len(raw))
	for i, r := range raw {
		spec, err := parseSpec(r)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		specs = append(specs, spec)
	}

	if err := validateUniqueOrdinals(specs); err != nil {
		return nil, err
	}

	return sortByOrdinal(specs), nil
}

func parseSpec(r RawSpec) (ColumnSpec, error) {
	ordinal, err := strconv.Atoi(strings.TrimSpace(r.Order))
	if err != nil {
		return ColumnSpec{}, fmt.Errorf("invalid ordinal %q", r.Order)
	}

	spec := ColumnSpec{
		DataType:   parseDataType(r.DataType),
		Format:     r.Format,
		Ordinal:    ordinal,
		OutputName: r.ExcelColumnName,
		IsInteger:  parseFlag(r.IsInteger),
		IsDouble:   parseFlag(r.IsDouble),
	}
	if parseFlag(r.IsDate) {
		spec.DataType = TypeDate
	}
	return spec, nil
}

func parseDataType(s string) DataType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string":
		return TypeString
	case "numeric":
		return TypeNumeric
	case "date":
		return TypeDate
	default:
		return TypeOther
	}
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// validateUniqueOrdinals rejects schemas where two columns share an output
// position. Detected before any file is created.
func validateUniqueOrdinals(specs []ColumnSpec) error {
	seen := make(map[int]struct{}, len(specs))
	for _, spec := range specs {
		if _, dup := seen[spec.Ordinal]; dup {
			return fmt.Errorf("%w %d", ErrDuplicateOrdinal, spec.Ordinal)
		}
		seen[spec.Ordinal] = struct{}{}
	}
	return nil
}

// sortByOrdinal orders specs ascending by ordinal. Ties cannot occur after
// validation.
func sortByOrdinal(specs []ColumnSpec) []ColumnSpec {
	sorted := make([]ColumnSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Ordinal < sorted[j].Ordinal
	})
	return sorted
}

// HeaderNames returns the output column labels in schema order.
func HeaderNames(specs []ColumnSpec) []string {
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.OutputName
	}
	return names
}
