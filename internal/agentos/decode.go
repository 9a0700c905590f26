package agentos

import (
	"encoding/json"
	"errors"
	"maps"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

var rawMessageType = reflect.TypeOf(json.RawMessage(nil))

// ErrInvalidBody is returned when a response body is not JSON at all.
var ErrInvalidBody = errors.New("response body is not valid JSON")

// decodeLenient decodes data into v. A missing, null or mistyped field
// keeps its zero value instead of failing the whole document. Struct
// fields may carry an `alias:"name"` tag naming a second key to read when
// the json key is absent.
func decodeLenient(data []byte, v any) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ErrInvalidBody
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  v,
		TagName: "json",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(rawMessageHook),
			mapstructure.DecodeHookFuncType(aliasHook),
		),
	})
	if err != nil {
		return err
	}
	// Field errors are collected while the remaining fields decode; the
	// fields that failed are left at zero.
	_ = dec.Decode(doc)
	return nil
}

// rawMessageHook re-encodes the subtree bound for a json.RawMessage field.
func rawMessageHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != rawMessageType {
		return data, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// aliasHook copies an aliased key onto the field's json key when the
// object lacks the primary key.
func aliasHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	obj, ok := data.(map[string]any)
	if !ok || to.Kind() != reflect.Struct {
		return data, nil
	}
	var out map[string]any
	for i := 0; i < to.NumField(); i++ {
		f := to.Field(i)
		alias := f.Tag.Get("alias")
		if alias == "" {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if _, ok := obj[name]; ok {
			continue
		}
		val, ok := obj[alias]
		if !ok {
			continue
		}
		if out == nil {
			out = maps.Clone(obj)
		}
		out[name] = val
	}
	if out == nil {
		return data, nil
	}
	return out, nil
}
