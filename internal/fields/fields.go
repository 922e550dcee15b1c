// Package fields names the index fields an extraction worker writes for each
// document.
package fields

import (
	"regexp"
	"strings"

	"github.com/eargollo/docqueue/internal/document"
)

// TagPrefix prefixes user-supplied tag fields.
const TagPrefix = "tag_"

var invalidChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Names maps logical document fields to index field names. The zero value is
// not useful; start from Defaults and override what differs.
type Names struct {
	ID             string `yaml:"id"              json:"id"`
	Text           string `yaml:"text"            json:"text"`
	Path           string `yaml:"path"            json:"path"`
	ParentPath     string `yaml:"parent_path"     json:"parent_path"`
	BaseType       string `yaml:"base_type"       json:"base_type"`
	Version        string `yaml:"version"         json:"version"`
	MetadataPrefix string `yaml:"metadata_prefix" json:"metadata_prefix"`
}

// Defaults returns the standard field names.
func Defaults() Names {
	return Names{
		ID:             "extract_id",
		Text:           "tika_content",
		Path:           "extract_paths",
		ParentPath:     "extract_parent_paths",
		BaseType:       "extract_base_type",
		Version:        "_version_",
		MetadataPrefix: "tika_metadata_",
	}
}

// WithDefaults fills every empty name from Defaults.
func (n Names) WithDefaults() Names {
	d := Defaults()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&n.ID, d.ID)
	fill(&n.Text, d.Text)
	fill(&n.Path, d.Path)
	fill(&n.ParentPath, d.ParentPath)
	fill(&n.BaseType, d.BaseType)
	fill(&n.Version, d.Version)
	fill(&n.MetadataPrefix, d.MetadataPrefix)
	return n
}

// ForMetadata turns a metadata key such as "Content-Type" into its field
// name, e.g. "tika_metadata_content_type".
func (n Names) ForMetadata(name string) string {
	return n.MetadataPrefix + strings.ToLower(invalidChars.ReplaceAllString(name, "_"))
}

// ForTag returns the field name for a user tag.
func (n Names) ForTag(tag string) string {
	return TagPrefix + strings.ToLower(invalidChars.ReplaceAllString(tag, "_"))
}

// Record returns the fields known before extraction, keyed by field name:
// the document identity and its base type guessed from the extension.
func (n Names) Record(doc document.Document) map[string]string {
	return map[string]string{
		n.ID:         doc.ID,
		n.Path:       doc.Path,
		n.ParentPath: doc.ParentPath(),
		n.BaseType:   string(DetectBaseType(doc.Path)),
	}
}
