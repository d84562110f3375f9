// internal/mode/decode.go
package mode

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Decode turns a name->value mapping into the technique's parameter struct.
// Every schema field is required; unknown fields are rejected.
// Numbers may arrive as strings and lists as comma-separated strings.
func (r *Registry) Decode(name string, raw map[string]any) (Params, error) {
	e, err := r.entry(name)
	if err != nil {
		return nil, err
	}
	expected := fieldNames(e.fields)
	fail := func(err error) (Params, error) {
		return nil, &ParameterError{Mode: e.code, Expected: expected, Err: err}
	}

	in := make(map[string]any, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, dup := in[key]; dup {
			return fail(fmt.Errorf("duplicate field %q", k))
		}
		in[key] = v
	}

	var missing []string
	for _, f := range expected {
		if _, ok := in[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fail(fmt.Errorf("missing field(s): %s", strings.Join(missing, ", ")))
	}

	p := e.new()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			integralHook,
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(in); err != nil {
		return fail(cleanDecodeError(err))
	}
	if err := p.Validate(); err != nil {
		return fail(err)
	}
	return p, nil
}

// integralHook refuses fractional numbers for integer fields.
func integralHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return data, nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%g is not an integer", f)
	}
	return data, nil
}

func cleanDecodeError(err error) error {
	var me *mapstructure.Error
	if errors.As(err, &me) {
		msgs := append([]string(nil), me.Errors...)
		sort.Strings(msgs)
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}
