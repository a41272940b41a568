package registry

import (
	"bytes"
	_ "embed"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

//go:embed manifest.schema.json
var manifestSchema []byte

const schemaURL = "manifest.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(manifestSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Format is a manifest encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the encoding from a manifest file name
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes and validates a manifest
func Parse(data []byte, format Format) (*types.WidgetDescriptor, error) {
	if format == FormatYAML {
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidConfig, err, "manifest is not valid YAML")
		}
		data = converted
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, err, "manifest is not valid JSON")
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "compile manifest schema")
	}
	if err := schema.Validate(doc); err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, err, "manifest rejected")
	}

	var desc types.WidgetDescriptor
	if err := sonic.Unmarshal(data, &desc); err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, err, "decode manifest")
	}
	if err := Validate(&desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// Load reads and parses the manifest at path, recording its directory
func Load(manifestPath string) (*types.WidgetDescriptor, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, err, "read manifest %s", manifestPath)
	}
	desc, err := Parse(data, FormatOf(manifestPath))
	if err != nil {
		return nil, err
	}
	desc.Dir = filepath.Dir(manifestPath)

	if desc.Script != "" {
		if _, err := os.Stat(filepath.Join(desc.Dir, filepath.FromSlash(desc.Script))); err != nil {
			return nil, errs.Wrap(errs.KindInvalidConfig, err, "script %s", desc.Script)
		}
	}
	return desc, nil
}

// LoadDir loads the manifest of a single widget directory
func LoadDir(dir string) (*types.WidgetDescriptor, error) {
	for _, name := range []string{"manifest.json", "manifest.yaml", "manifest.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return nil, errs.New(errs.KindInvalidConfig, "no manifest in %s", dir)
}

// Validate runs the checks a schema cannot express. It is also applied to
// descriptors registered programmatically.
func Validate(d *types.WidgetDescriptor) error {
	if d == nil {
		return errs.New(errs.KindInvalidConfig, "descriptor is nil")
	}
	if d.ID == "" || d.Name == "" || d.Version == "" || d.EntryPoint == "" {
		return errs.New(errs.KindInvalidConfig, "%q: id, name, version and entryPoint are required", d.ID)
	}
	if !validID(d.ID) {
		return errs.New(errs.KindInvalidConfig, "invalid widget id %q", d.ID)
	}

	s := d.Sizes
	if !s.Default.Valid() {
		return errs.New(errs.KindInvalidConfig, "%s: default size must be positive", d.ID)
	}
	if s.Min != nil {
		if !s.Min.Valid() {
			return errs.New(errs.KindInvalidConfig, "%s: min size must be positive", d.ID)
		}
		if s.Min.Width > s.Default.Width || s.Min.Height > s.Default.Height {
			return errs.New(errs.KindInvalidConfig, "%s: min size exceeds default", d.ID)
		}
	}
	if s.Max != nil {
		if !s.Max.Valid() {
			return errs.New(errs.KindInvalidConfig, "%s: max size must be positive", d.ID)
		}
		if s.Max.Width < s.Default.Width || s.Max.Height < s.Default.Height {
			return errs.New(errs.KindInvalidConfig, "%s: default size exceeds max", d.ID)
		}
	}

	for _, p := range []string{d.EntryPoint, d.Script} {
		if p != "" && !localPath(p) {
			return errs.New(errs.KindInvalidConfig, "%s: path %q escapes the widget directory", d.ID, p)
		}
	}

	for _, domain := range d.Permissions.Network.AllowedDomains {
		if !doublestar.ValidatePattern(strings.ToLower(domain)) || strings.ContainsAny(domain, "/:") {
			return errs.New(errs.KindInvalidConfig, "%s: invalid allowed domain %q", d.ID, domain)
		}
	}
	return nil
}

func validID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case i > 0 && (r == '.' || r == '_' || r == '-'):
		default:
			return false
		}
	}
	return true
}

func localPath(p string) bool {
	if strings.Contains(p, `\`) || path.IsAbs(p) {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
