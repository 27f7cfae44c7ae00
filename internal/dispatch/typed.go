package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// argTag names the struct tag that binds a field to an argument:
//
//	type WhoamiArgs struct {
//	    AllCaps bool `arg:"all_caps,optional"`
//	}
const argTag = "arg"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _ := parseArgTag(f.Tag.Get(argTag))
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// TypedFunc is a service callable taking a decoded arguments struct.
type TypedFunc[A any] func(ctx context.Context, dc *Context, args A) (any, error)

// Typed describes a service whose parameters are the arg-tagged fields of
// A. Optional fields default to their zero value.
func Typed[A any](fn TypedFunc[A]) Spec {
	var zero A
	return TypedWithDefaults(zero, fn)
}

// TypedWithDefaults is Typed with explicit defaults for optional fields.
//
// Arguments are decoded onto a copy of defaults; a value that cannot be
// converted to the field type, or that fails the field's validate tag,
// yields an InvalidArgument domain error.
func TypedWithDefaults[A any](defaults A, fn TypedFunc[A]) Spec {
	if fn == nil {
		return Spec{err: ErrNilFunc}
	}
	fields, err := argFields(reflect.TypeOf(defaults))
	if err != nil {
		return Spec{err: err}
	}

	dv := reflect.ValueOf(defaults)
	params := make([]Param, 0, len(fields))
	for _, f := range fields {
		p := Param{Name: f.name, Optional: f.optional}
		if f.optional {
			p.Default = dv.FieldByIndex(f.index).Interface()
		}
		params = append(params, p)
	}

	call := func(ctx context.Context, dc *Context, args Args) (any, error) {
		a := defaults
		av := reflect.ValueOf(&a).Elem()
		for _, f := range fields {
			raw, ok := args[f.name]
			if !ok {
				continue
			}
			if err := decodeField(raw, av.FieldByIndex(f.index)); err != nil {
				return nil, InvalidArgument(f.name, "reason", err.Error())
			}
		}
		if err := validateArgs(&a); err != nil {
			return nil, err
		}
		return fn(ctx, dc, a)
	}
	return Spec{fn: call, params: params}
}

type argField struct {
	name     string
	optional bool
	index    []int
}

// argFields lists the arg-tagged exported fields of t in declaration order.
func argFields(t reflect.Type) ([]argField, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: typed arguments must be a struct, got %v", ErrInvalidParams, t)
	}

	var fields []argField
	seen := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, optional := parseArgTag(sf.Tag.Get(argTag))
		if name == "" || name == "-" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate argument %q in %v", ErrInvalidParams, name, t)
		}
		seen[name] = true
		fields = append(fields, argField{name: name, optional: optional, index: sf.Index})
	}
	return fields, nil
}

func parseArgTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "optional" {
			optional = true
		}
	}
	return name, optional
}

// decodeField converts one raw argument onto its struct field. An explicit
// null resets the field to its zero value.
func decodeField(raw any, field reflect.Value) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     field.Addr().Interface(),
		TagName:    argTag,
		ZeroFields: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
			floatToIntegerHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// floatToIntegerHookFunc refuses floats that do not convert exactly to an
// integer target. JSON numbers arrive as float64 and mapstructure would
// otherwise truncate or overflow them.
func floatToIntegerHookFunc() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from == nil || to == nil {
			return data, nil
		}
		if from.Kind() != reflect.Float32 && from.Kind() != reflect.Float64 {
			return data, nil
		}
		v := reflect.ValueOf(data).Float()
		switch to.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if err := checkIntegral(v); err != nil {
				return nil, err
			}
			if v < math.MinInt64 || v >= math.MaxInt64 || reflect.Zero(to).OverflowInt(int64(v)) {
				return nil, fmt.Errorf("%v overflows %v", v, to)
			}
			return int64(v), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			if err := checkIntegral(v); err != nil {
				return nil, err
			}
			if v < 0 || v >= math.MaxUint64 || reflect.Zero(to).OverflowUint(uint64(v)) {
				return nil, fmt.Errorf("%v overflows %v", v, to)
			}
			return uint64(v), nil
		}
		return data, nil
	}
}

func checkIntegral(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return fmt.Errorf("%v is not an integer", v)
	}
	return nil
}

// validateArgs applies validate struct tags. Rule violations become
// InvalidArgument errors naming the first failing argument.
func validateArgs(a any) error {
	err := validate.Struct(a)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return InvalidArgument(fe.Field(), "rule", fe.Tag())
	}
	return fmt.Errorf("validate arguments: %w", err)
}
