package tools

import (
	"fmt"
	"strings"

	"dcaadvisor/pkg/errors"
)

// Validate checks raw arguments against the schema and returns normalized Args
// with defaults filled in. Arguments the schema does not declare are dropped.
func Validate(schema Schema, raw map[string]any) (Args, error) {
	out := make(Args, len(schema.Params))
	var merr errors.MultiError

	for _, p := range schema.Params {
		v, present := raw[p.Name]
		if !present || v == nil {
			if p.Default != nil {
				if dv, ok := coerce(p.Default, p.Type); ok {
					out[p.Name] = dv
				}
				continue
			}
			if p.Required {
				merr.Add(errors.NewValidationError(p.Name, "is required", nil))
			}
			continue
		}

		cv, ok := coerce(v, p.Type)
		if !ok {
			merr.Add(errors.NewValidationError(p.Name, fmt.Sprintf("expected %s", p.Type), v))
			continue
		}

		if len(p.Enum) > 0 && !inEnum(cv, p.Enum) {
			merr.Add(errors.NewValidationError(p.Name, fmt.Sprintf("must be one of %v", p.Enum), v))
			continue
		}

		out[p.Name] = cv
	}

	if merr.HasErrors() {
		msgs := make([]string, len(merr.Errors))
		for i, e := range merr.Errors {
			msgs[i] = e.Error()
		}
		return nil, errors.Newf("%w: %s", errors.ErrInvalidArguments, strings.Join(msgs, "; "))
	}
	return out, nil
}

func inEnum(v any, enum []any) bool {
	for _, e := range enum {
		if fmt.Sprint(e) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}
