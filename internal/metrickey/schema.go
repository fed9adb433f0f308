package metrickey

import "sort"

// Schema maps a base metric name to the ordered label names encoded
// in the trailing segments of a dotted metric name.
// A Schema is immutable once built and safe for concurrent use.
type Schema struct {
	labels map[string][]string
	// bases holds the base names ordered longest first.
	bases []string
}

// NewSchema builds a Schema from a base name -> label names table.
// Entries without label names are ignored.
func NewSchema(table map[string][]string) *Schema {
	s := &Schema{
		labels: make(map[string][]string, len(table)),
		bases:  make([]string, 0, len(table)),
	}

	for base, names := range table {
		if base == "" || len(names) == 0 {
			continue
		}

		s.labels[base] = append([]string(nil), names...)
		s.bases = append(s.bases, base)
	}

	sort.Slice(s.bases, func(i, j int) bool {
		if len(s.bases[i]) != len(s.bases[j]) {
			return len(s.bases[i]) > len(s.bases[j])
		}

		return s.bases[i] < s.bases[j]
	})

	return s
}

// DefaultSchema returns the label table for the metric names an image
// server reports about responses and original image fetches.
func DefaultSchema() *Schema {
	return NewSchema(DefaultLabels())
}

// DefaultLabels returns a fresh copy of the default label table.
func DefaultLabels() map[string][]string {
	return map[string][]string{
		"response.status":       {"statuscode"},
		"response.format":       {"extension"},
		"response.bytes":        {"extension"},
		"response.time":         {"statuscode_extension"},
		"original_image.status": {"statuscode", "networklocation"},
		"original_image.fetch":  {"statuscode", "networklocation"},
	}
}

// Labels returns the label names for base, or nil if base is unknown.
func (s *Schema) Labels(base string) []string {
	if s == nil {
		return nil
	}

	return s.labels[base]
}

// Len returns the number of base names in the schema.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}

	return len(s.bases)
}
