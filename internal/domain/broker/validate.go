package broker

import (
	"bytes"
	"math"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const emptyArgs = `{"type": "object"}`

func compile(c types.Capability) (*jsonschema.Schema, error) {
	src := c.Schema
	if strings.TrimSpace(src) == "" {
		src = emptyArgs
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		return nil, err
	}

	url := c.ID + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// validateArgs rejects non-finite numbers, checks the schema and returns the
// arguments normalized through JSON
func validateArgs(schema *jsonschema.Schema, args map[string]interface{}) (map[string]interface{}, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	if path, ok := nonFinite(args, ""); ok {
		return nil, errs.New(errs.KindInvalidConfig, "argument %s must be a finite number", path)
	}

	raw, err := sonic.Marshal(args)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, err, "arguments are not serializable")
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, err, "arguments are not valid JSON")
	}
	if err := schema.Validate(doc); err != nil {
		return nil, errs.New(errs.KindInvalidConfig, "invalid arguments: %s", flatten(err))
	}

	normalized := map[string]interface{}{}
	if err := sonic.Unmarshal(raw, &normalized); err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, err, "decode arguments")
	}
	return normalized, nil
}

// nonFinite finds the first NaN or infinite number in v
func nonFinite(v interface{}, path string) (string, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return path, true
		}
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return path, true
		}
	case map[string]interface{}:
		for k, item := range val {
			if p, ok := nonFinite(item, path+"/"+k); ok {
				return p, true
			}
		}
	case []interface{}:
		for _, item := range val {
			if p, ok := nonFinite(item, path+"/[]"); ok {
				return p, true
			}
		}
	}
	return "", false
}

// flatten joins a multi-line schema error into one line
func flatten(err error) string {
	lines := strings.Split(err.Error(), "\n")
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "-"))
		if l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "; ")
}
