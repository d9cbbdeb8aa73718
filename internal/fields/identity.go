package fields

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"commercial-analytics/internal/models"
)

// CustomerIdentity returns the stable identity key of the customer behind rec
// and a display label. Tax ids are reduced to their digits so that formatted
// and bare spellings match; without a tax id the upper-cased name is the key.
func CustomerIdentity(rec models.Record, m models.Mapping) (key, label string, ok bool) {
	raw := Text(rec, models.FieldCustomerKey, m, "")
	name := Text(rec, models.FieldCustomerName, m, "")

	key = normalizeTaxID(raw)
	if key == "" && name != "" {
		key = strings.ToUpper(strings.Join(strings.Fields(name), " "))
	}
	if key == "" {
		return "", "", false
	}
	label = name
	if label == "" {
		label = raw
	}
	return key, label, true
}

func normalizeTaxID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '/' || r == ' ':
		default:
			// not a formatted number; keep the original spelling
			return strings.ToUpper(s)
		}
	}
	return b.String()
}

// LoadMapping reads a YAML document of logicalField: "Column Name" pairs.
// Unknown logical fields are rejected.
func LoadMapping(path string) (models.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes a YAML mapping document.
func ParseMapping(data []byte) (models.Mapping, error) {
	raw := make(map[string]string)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}

	known := make(map[models.LogicalField]bool, len(models.LogicalFields))
	for _, f := range models.LogicalFields {
		known[f] = true
	}

	m := make(models.Mapping, len(raw))
	for k, col := range raw {
		f := models.LogicalField(k)
		if !known[f] {
			return nil, fmt.Errorf("unknown logical field %q", k)
		}
		if col = strings.TrimSpace(col); col != "" {
			m[f] = col
		}
	}
	return m, nil
}
