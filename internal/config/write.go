package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const fileHeader = "# spindle configuration\n\n"

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	return writeTOML(path, cfg)
}

// Set assigns value to key ("section.field") in the config file at path,
// keeping the file's other settings. The result must still validate;
// otherwise the file is left untouched.
func Set(path, key, value string) error {
	kind, err := keyKind(key)
	if err != nil {
		return err
	}
	section, field, _ := strings.Cut(key, ".")

	typed, err := parseValue(kind, value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	original, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]any{}
	if len(original) > 0 {
		if _, err := toml.Decode(string(original), &raw); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	sectionMap, ok := raw[section].(map[string]any)
	if !ok {
		sectionMap = map[string]any{}
		raw[section] = sectionMap
	}
	sectionMap[field] = typed

	if err := writeTOML(path, raw); err != nil {
		return err
	}

	cfg, err := LoadFrom(path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		if original == nil {
			_ = os.Remove(path)
		} else {
			_ = os.WriteFile(path, original, 0644)
		}
		return err
	}
	return nil
}

// Keys lists every settable key.
func Keys() []string {
	var keys []string
	walkKeys(func(key string, _ reflect.Kind) {
		keys = append(keys, key)
	})
	return keys
}

func keyKind(key string) (reflect.Kind, error) {
	var found reflect.Kind
	walkKeys(func(k string, kind reflect.Kind) {
		if k == key {
			found = kind
		}
	})
	if found == reflect.Invalid {
		return found, fmt.Errorf("%w: unknown key %q", ErrUnknownKey, key)
	}
	return found, nil
}

// ErrUnknownKey is returned by Set for keys the schema does not have.
var ErrUnknownKey = errors.New("unknown config key")

func walkKeys(fn func(key string, kind reflect.Kind)) {
	root := reflect.TypeOf(Config{})
	for i := range root.NumField() {
		section := root.Field(i)
		for j := range section.Type.NumField() {
			field := section.Type.Field(j)
			fn(section.Tag.Get("toml")+"."+field.Tag.Get("toml"), field.Type.Kind())
		}
	}
}

func parseValue(kind reflect.Kind, value string) (any, error) {
	switch kind {
	case reflect.Int:
		i, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.New("value must be an integer")
		}
		return i, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, errors.New("value must be true or false")
		}
		return b, nil
	default:
		return value, nil
	}
}

func writeTOML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	enc := toml.NewEncoder(&buf)
	enc.Indent = "  "
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
