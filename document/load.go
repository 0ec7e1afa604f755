package document

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	goyaml "gopkg.in/yaml.v3"
)

var structValidator = validator.New()

// Load reads and parses a document from a YAML file, grounded on the
// teacher's runtime/engine/yaml/loader.go unmarshal-to-struct idiom.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return Parse(raw)
}

// Parse unmarshals raw YAML bytes into a Document and validates the
// document-level structural requirements from §6: a version, an id, and at
// least one of flows/channels.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := goyaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural requirements §6 places on a document: the
// required fields (via validator/v10, the teacher's config.go validation
// idiom reused here for documents) plus the either/or "flows or channels"
// rule validator struct tags can't express across two map fields.
func (d *Document) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return fmt.Errorf("document: %w", err)
	}
	if d.Version != SupportedVersion {
		return fmt.Errorf("document: unsupported version %q (expected %q)", d.Version, SupportedVersion)
	}
	if d.Metadata.ID == "" {
		return fmt.Errorf("document: missing metadata.id")
	}
	if len(d.Flows) == 0 && len(d.Channels) == 0 {
		return fmt.Errorf("document %s: must declare at least one of flows or channels", d.Metadata.ID)
	}
	return nil
}
