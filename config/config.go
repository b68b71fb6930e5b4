// Package config implements typed, keyed repository properties with
// defaults and converters (spec.md §4.4), generalized from the teacher's
// build/appdata.go "read raw value, fall back to a documented default"
// shape from environment variables to a repository's config table.
package config

import (
	"fmt"

	"github.com/uplo-tech/errors"
)

// ErrValueConvert is returned when a converter rejects a raw string,
// matching spec.md §7's ValueConvertError kind.
var ErrValueConvert = errors.New("invalid config value")

// ValueConvertError carries the offending property key, raw value, and
// converter message, per spec.md §4.4.
type ValueConvertError struct {
	Key     string
	Raw     string
	Message string
}

func (e *ValueConvertError) Error() string {
	return fmt.Sprintf("config %q: invalid value %q: %s", e.Key, e.Raw, e.Message)
}

func (e *ValueConvertError) Unwrap() error {
	return ErrValueConvert
}

// ConvertContext lets a converter signal a ValueConvertError carrying the
// property key and raw value it was given.
type ConvertContext struct {
	Key string
	Raw string
}

// Fail builds a ValueConvertError for the current key/value pair.
func (c ConvertContext) Fail(msg string) error {
	return &ValueConvertError{Key: c.Key, Raw: c.Raw, Message: msg}
}

// Converter turns a raw stored string into a typed value, or fails via
// ctx.Fail.
type Converter[T any] func(ctx ConvertContext, raw string) (T, error)

// Property describes one typed, keyed config value: its storage key, its
// default, a human name/description, and the converter used to parse a
// raw stored string.
type Property[T any] struct {
	Key         string
	Default     T
	Convert     Converter[T]
	Name        string
	Description string
}

// Store is the minimal persistence contract Config needs: get/set a raw
// string by key. *store.Store's config table satisfies this.
type Store interface {
	GetConfig(key string) (string, bool, error)
	SetConfig(key, value string) error
}

// Config maps properties to raw string values held in a Store.
type Config struct {
	store Store
}

// New wraps a Store as a Config.
func New(store Store) *Config {
	return &Config{store: store}
}

// Get returns p.Default if the key is unset, or the result of running
// p.Convert over the stored raw value.
func Get[T any](c *Config, p Property[T]) (T, error) {
	raw, ok, err := c.store.GetConfig(p.Key)
	if err != nil {
		var zero T
		return zero, errors.AddContext(err, "could not read config key "+p.Key)
	}
	if !ok {
		return p.Default, nil
	}
	v, err := p.Convert(ConvertContext{Key: p.Key, Raw: raw}, raw)
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Set stores a raw value for the property's key.
func Set[T any](c *Config, p Property[T], raw string) error {
	return c.store.SetConfig(p.Key, raw)
}
