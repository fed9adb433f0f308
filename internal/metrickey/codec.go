// Package metrickey turns dotted metric names into canonical aggregation keys.
package metrickey

import (
	"sort"
	"strings"
)

// Parse splits name into its base name and the labels encoded in its
// trailing segments, according to schema.
//
// The longest base name that is a dot-prefix of name wins. The remainder is
// split on "." into at most len(labels) pieces, so the last label value may
// contain dots. Labels without a matching piece are omitted. Names that match
// no base are returned whole with no labels.
func Parse(name string, schema *Schema) (string, map[string]string) {
	labels := map[string]string{}

	if schema == nil {
		return name, labels
	}

	for _, base := range schema.bases {
		if !strings.HasPrefix(name, base+".") {
			continue
		}

		names := schema.labels[base]
		values := strings.SplitN(name[len(base)+1:], ".", len(names))

		for i, label := range names {
			if i >= len(values) {
				break
			}

			labels[label] = values[i]
		}

		return base, labels
	}

	return name, labels
}

// MakeKey builds the aggregation key for base and labels. Labels are sorted
// by name and joined as "label:value" pairs with ".". Empty values are
// skipped. With no usable labels the base name is returned unchanged.
func MakeKey(base string, labels map[string]string) string {
	if len(labels) == 0 {
		return base
	}

	names := make([]string, 0, len(labels))

	for label, value := range labels {
		if value == "" {
			continue
		}

		names = append(names, label)
	}

	if len(names) == 0 {
		return base
	}

	sort.Strings(names)

	var b strings.Builder

	b.WriteString(base)

	for _, label := range names {
		b.WriteByte('.')
		b.WriteString(label)
		b.WriteByte(':')
		b.WriteString(labels[label])
	}

	return b.String()
}

// Codec binds a Schema so callers can go from metric name to key in one step.
type Codec struct {
	schema *Schema
}

// NewCodec creates a Codec. A nil schema disables label extraction.
func NewCodec(schema *Schema) *Codec {
	return &Codec{schema: schema}
}

// Key returns the aggregation key for the raw metric name.
func (c *Codec) Key(name string) string {
	return MakeKey(Parse(name, c.schema))
}

// Schema returns the codec's label schema.
func (c *Codec) Schema() *Schema {
	return c.schema
}
