package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/parallel"
	"github.com/paveg/gibbon/internal/series"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fixed masks for common identifiers.
const (
	PhoneMask = "***-***-****"
	SSNMask   = "***-**-****"
)

// DefaultRedaction replaces every value of a redacted column.
const DefaultRedaction = "REDACTED"

// DefaultHashLength is the number of hex characters kept from the digest.
const DefaultHashLength = 16

// Rule rewrites one source column into one utf8 output column.
type Rule interface {
	// Source is the column the rule reads.
	Source() string
	// Output is the name of the column the rule produces.
	Output() string
	// Kind names the transform, used in errors and logs.
	Kind() string

	check(dtype series.Dtype) error
	transform(src *series.Series, r parallel.Range) chunk
}

// chunk is the result of one rule over one row range.
type chunk struct {
	values []string
	valid  []bool
}

func newChunk(n int) chunk {
	return chunk{values: make([]string, n), valid: make([]bool, n)}
}

func outputName(source, rename string) string {
	if rename != "" {
		return rename
	}
	return source
}

// Pseudonymize replaces a value with a truncated salted SHA-256 digest.
type Pseudonymize struct {
	Column    string
	Salt      string
	Prefix    string
	Suffix    string
	Length    int  // hex characters kept, DefaultHashLength when zero
	Normalize bool // NFC plus case folding before hashing
	Rename    string
}

// NamePseudonym hashes names into "Customer_<hash>".
func NamePseudonym(column, salt string) Pseudonymize {
	return Pseudonymize{Column: column, Salt: salt, Prefix: "Customer_"}
}

// EmailPseudonym hashes emails into "<hash>@anonymized.local".
func EmailPseudonym(column, salt string) Pseudonymize {
	return Pseudonymize{Column: column, Salt: salt, Suffix: "@anonymized.local"}
}

// As renames the output column.
func (p Pseudonymize) As(name string) Pseudonymize {
	p.Rename = name
	return p
}

func (p Pseudonymize) Source() string { return p.Column }
func (p Pseudonymize) Output() string { return outputName(p.Column, p.Rename) }
func (p Pseudonymize) Kind() string   { return "pseudonymize" }

func (p Pseudonymize) hashLength() int {
	if p.Length == 0 {
		return DefaultHashLength
	}
	return p.Length
}

func (p Pseudonymize) check(series.Dtype) error {
	if k := p.hashLength(); k < 1 || k > 2*sha256.Size {
		return errors.NewInvalidInputError(p.Kind(),
			fmt.Sprintf("hash length must be between 1 and %d, got %d", 2*sha256.Size, k))
	}
	return nil
}

// Hash returns the pseudonym for a single value.
func (p Pseudonymize) Hash(value string) string {
	if p.Normalize {
		value = cases.Fold().String(norm.NFC.String(value))
	}
	return p.hash(value)
}

func (p Pseudonymize) hash(value string) string {
	sum := sha256.Sum256([]byte(value + p.Salt))
	return p.Prefix + hex.EncodeToString(sum[:])[:p.hashLength()] + p.Suffix
}

func (p Pseudonymize) transform(src *series.Series, r parallel.Range) chunk {
	out := newChunk(r.Len())
	// Casers carry state and must not be shared across goroutines.
	folder := cases.Fold()
	for i := r.Start; i < r.End; i++ {
		if src.IsNull(i) {
			continue
		}
		value := src.GetAsString(i)
		if p.Normalize {
			value = folder.String(norm.NFC.String(value))
		}
		out.values[i-r.Start] = p.hash(value)
		out.valid[i-r.Start] = true
	}
	return out
}

// CollisionProbability approximates the chance that n distinct inputs
// produce at least one repeated k-character pseudonym (birthday bound).
func CollisionProbability(n, k int) float64 {
	if n < 2 {
		return 0
	}
	pairs := float64(n) * float64(n-1)
	return -math.Expm1(-pairs / math.Ldexp(1, 4*k+1))
}

// Mask replaces every row, null or not, with a fixed pattern.
type Mask struct {
	Column  string
	Pattern string
	Rename  string
}

func (m Mask) As(name string) Mask {
	m.Rename = name
	return m
}

func (m Mask) Source() string { return m.Column }
func (m Mask) Output() string { return outputName(m.Column, m.Rename) }
func (m Mask) Kind() string   { return "mask" }

func (m Mask) check(series.Dtype) error { return nil }

func (m Mask) transform(_ *series.Series, r parallel.Range) chunk {
	return constant(m.Pattern, r)
}

// Redact replaces every row with a constant.
type Redact struct {
	Column   string
	Constant string // DefaultRedaction when empty
	Rename   string
}

func (d Redact) As(name string) Redact {
	d.Rename = name
	return d
}

func (d Redact) Source() string { return d.Column }
func (d Redact) Output() string { return outputName(d.Column, d.Rename) }
func (d Redact) Kind() string   { return "redact" }

func (d Redact) check(series.Dtype) error { return nil }

func (d Redact) transform(_ *series.Series, r parallel.Range) chunk {
	if d.Constant == "" {
		return constant(DefaultRedaction, r)
	}
	return constant(d.Constant, r)
}

func constant(value string, r parallel.Range) chunk {
	out := newChunk(r.Len())
	for i := range out.values {
		out.values[i] = value
		out.valid[i] = true
	}
	return out
}

// Boundary opens a bucket: values >= Threshold get Label until the next boundary.
type Boundary struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Label     string  `json:"label" yaml:"label"`
}

// Bucketize replaces a numeric value with the label of its range.
type Bucketize struct {
	Column     string
	Floor      string // label below the first threshold
	Boundaries []Boundary
	Rename     string
}

// SalaryBuckets groups yearly salaries into five ranges.
func SalaryBuckets(column string) Bucketize {
	return Bucketize{
		Column: column,
		Floor:  "< $50k",
		Boundaries: []Boundary{
			{Threshold: 50000, Label: "$50k-$75k"},
			{Threshold: 75000, Label: "$75k-$100k"},
			{Threshold: 100000, Label: "$100k-$125k"},
			{Threshold: 125000, Label: "> $125k"},
		},
	}
}

func (b Bucketize) As(name string) Bucketize {
	b.Rename = name
	return b
}

func (b Bucketize) Source() string { return b.Column }
func (b Bucketize) Output() string { return outputName(b.Column, b.Rename) }
func (b Bucketize) Kind() string   { return "bucketize" }

func (b Bucketize) check(dtype series.Dtype) error {
	if !dtype.IsNumeric() {
		return &errors.DataFrameError{
			Kind:    errors.KindSchema,
			Op:      b.Kind(),
			Column:  b.Column,
			Row:     -1,
			Message: fmt.Sprintf("want numeric input, got %s", dtype),
		}
	}
	for i := 1; i < len(b.Boundaries); i++ {
		if b.Boundaries[i].Threshold <= b.Boundaries[i-1].Threshold {
			return errors.NewInvalidInputError(b.Kind(),
				fmt.Sprintf("boundaries must be strictly ascending, %v follows %v",
					b.Boundaries[i].Threshold, b.Boundaries[i-1].Threshold))
		}
	}
	return nil
}

// Label returns the bucket label for v.
func (b Bucketize) Label(v float64) string {
	idx := sort.Search(len(b.Boundaries), func(i int) bool {
		return b.Boundaries[i].Threshold > v
	})
	if idx == 0 {
		return b.Floor
	}
	return b.Boundaries[idx-1].Label
}

func (b Bucketize) transform(src *series.Series, r parallel.Range) chunk {
	out := newChunk(r.Len())
	for i := r.Start; i < r.End; i++ {
		raw, ok := src.Value(i)
		if !ok {
			continue
		}
		var v float64
		switch x := raw.(type) {
		case int64:
			v = float64(x)
		case float64:
			v = x
		}
		// NaN has no range.
		if math.IsNaN(v) {
			continue
		}
		out.values[i-r.Start] = b.Label(v)
		out.valid[i-r.Start] = true
	}
	return out
}
