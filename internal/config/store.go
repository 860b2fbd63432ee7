package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "VAULTSCRIBE"

// Store persists Settings as a TOML file. Environment variables named
// VAULTSCRIBE_<KEY> (upper-cased key) override file values but are never
// written back.
type Store struct {
	file map[string]any // settings file contents only
	v    *viper.Viper   // defaults, file and environment
	path string
}

// Open loads settings from path. A missing file yields the defaults.
func Open(path string) (*Store, error) {
	file := map[string]any{}
	if path != "" {
		fv := viper.New()
		fv.SetConfigFile(path)
		fv.SetConfigType("toml")
		if _, err := os.Stat(path); err == nil {
			if err := fv.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read settings %s: %w", path, err)
			}
			file = fv.AllSettings()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat settings %s: %w", path, err)
		}
	}

	return &Store{file: file, v: layered(file), path: path}, nil
}

// layered stacks defaults, the given file values and the environment.
func layered(file map[string]any) *viper.Viper {
	v := viper.New()
	for name, value := range Defaults().values() {
		v.SetDefault(name, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	_ = v.MergeConfigMap(maps.Clone(file))
	return v
}

// Path returns the backing file, empty for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Settings decodes and validates the merged values.
func (s *Store) Settings() (Settings, error) {
	return decode(s.v)
}

func decode(v *viper.Viper) (Settings, error) {
	var out Settings
	if err := v.Unmarshal(&out); err != nil {
		return Settings{}, &ConfigurationError{Reason: "decode settings", Err: err}
	}
	if err := Validate(out); err != nil {
		return Settings{}, err
	}
	return out, nil
}

// Get returns the string form of one setting.
func (s *Store) Get(name string) (string, error) {
	ks, ok := lookupKey(name)
	if !ok {
		return "", &ConfigurationError{Field: name, Reason: "unknown setting"}
	}
	switch ks.kind {
	case kindBool:
		return strconv.FormatBool(s.v.GetBool(ks.name)), nil
	case kindDuration:
		return s.v.GetDuration(ks.name).String(), nil
	default:
		return s.v.GetString(ks.name), nil
	}
}

// Set parses raw according to the key's type, validates the resulting
// Settings and writes the file. On failure the previous value is kept.
func (s *Store) Set(name, raw string) error {
	ks, ok := lookupKey(name)
	if !ok {
		return &ConfigurationError{Field: name, Reason: "unknown setting"}
	}

	var value any = raw
	switch ks.kind {
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return &ConfigurationError{Field: ks.name, Reason: "expected true or false", Err: err}
		}
		value = b
	case kindDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return &ConfigurationError{Field: ks.name, Reason: "expected a duration such as 90s", Err: err}
		}
		value = d.String()
	}

	candidate := maps.Clone(s.file)
	candidate[strings.ToLower(ks.name)] = value
	next := layered(candidate)
	if _, err := decode(next); err != nil {
		return err
	}

	if err := s.save(candidate); err != nil {
		return err
	}
	s.file, s.v = candidate, next
	return nil
}

func (s *Store) save(file map[string]any) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	out := viper.New()
	out.SetConfigType("toml")
	for name, value := range file {
		out.Set(name, value)
	}
	if err := out.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return nil
}
