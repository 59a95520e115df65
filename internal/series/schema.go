package series

import (
	"strings"
)

// Field is a column name paired with its dtype.
type Field struct {
	Name  string
	Dtype Dtype
}

// Schema is the ordered list of fields of a table.
type Schema []Field

// Lookup returns the dtype of the named field.
func (s Schema) Lookup(name string) (Dtype, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Dtype, true
		}
	}
	return 0, false
}

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + ": " + f.Dtype.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
