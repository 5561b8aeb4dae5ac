package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/locator"
)

// Args are decoded tool arguments as they arrive from JSON.
type Args map[string]any

func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// String returns a string argument. Numbers are formatted in decimal.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case json.Number:
		return t.String(), nil
	}
	return "", errs.New(errs.KindInvalidArgument, "%s: expected string, got %T", key, v)
}

// Int returns an integer argument, or def when absent.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, errs.New(errs.KindInvalidArgument, "%s: expected integer, got %v", key, t)
		}
		return int(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, errs.Wrap(errs.KindInvalidArgument, err, "%s", key)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, errs.Wrap(errs.KindInvalidArgument, err, "%s", key)
		}
		return n, nil
	}
	return 0, errs.New(errs.KindInvalidArgument, "%s: expected integer, got %T", key, v)
}

// Bool returns a boolean argument, or def when absent.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, errs.Wrap(errs.KindInvalidArgument, err, "%s", key)
		}
		return b, nil
	}
	return false, errs.New(errs.KindInvalidArgument, "%s: expected boolean, got %T", key, v)
}

// Locator returns a locator string. A bare number is a paragraph index.
func (a Args) Locator(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	switch v.(type) {
	case float64, int, int64, json.Number:
		n, err := a.Int(key, 0)
		if err != nil {
			return "", err
		}
		return locator.Paragraph(n).String(), nil
	}
	return a.String(key)
}

// List returns an array argument.
func (a Args) List(key string) ([]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "%s: expected array, got %T", key, v)
	}
	return list, nil
}

// Object converts a decoded JSON object into Args.
func Object(v any) (Args, bool) {
	switch t := v.(type) {
	case map[string]any:
		return Args(t), true
	case Args:
		return t, true
	case nil:
		return Args{}, true
	}
	return nil, false
}
