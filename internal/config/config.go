// Package config layers configuration sources. Command line flags win,
// then VIEWFINDER_-prefixed environment variables, then the TOML file,
// then compiled defaults.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/viewfinder/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const envPrefix = "VIEWFINDER_"

// Load fills opts from the TOML file and environment. Fields whose
// flags were set explicitly on the command line are left alone, so CLI
// arguments keep the highest precedence. The TOML path is taken from
// the struct's Config field.
func Load(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	fixed := changedFlags(cmd)

	doc, err := readTOML(configPath(v, t))
	if err != nil {
		return err
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		spec := t.Field(i)

		if fixed[flagName(spec.Name)] {
			continue
		}
		if key := spec.Tag.Get("toml"); key != "" && doc != nil {
			if value := lookup(doc, key); value != nil {
				assign(field, value)
			}
		}
		// Environment loads after TOML so it overrides the file.
		if key := spec.Tag.Get("env"); key != "" {
			if raw := os.Getenv(envPrefix + key); raw != "" {
				assignString(field, raw)
			}
		}
	}

	return nil
}

// Logging reads the [logging] table. The level and format keys are the
// global settings; every other key names a module and its level. The
// zero value is info/auto with no module overrides, also returned when
// the file is missing or malformed so startup never fails on logging
// config.
func Logging(path string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "auto",
		Modules: make(map[string]string),
	}
	if path == "" {
		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	var doc struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return cfg
	}

	for key, value := range doc.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

func configPath(v reflect.Value, t reflect.Type) string {
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			return v.Field(i).String()
		}
	}
	return ""
}

// readTOML returns nil without error when the file does not exist; a
// missing config file is not a failure.
func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// flagName converts a field name to its flag spelling the same way the
// CLI layer does: "CaptureCount" to "capture-count", and acronym runs
// stay together, "DMAExport" to "dma-export", "NoAPI" to "no-api".
func flagName(field string) string {
	runes := []rune(field)
	var out []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				out = append(out, '-')
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// lookup walks a dotted key path through nested TOML tables.
func lookup(doc map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := doc
	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

// assign stores a decoded TOML value into a struct field. Values of the
// wrong type are ignored rather than erroring; a bad config line should
// not take the viewfinder down.
func assign(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		arr, ok := value.([]any)
		if !ok {
			return
		}
		out := make([]string, len(arr))
		for i, item := range arr {
			if s, ok := item.(string); ok {
				out[i] = s
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

// assignString stores an environment variable value into a struct
// field. Slices split on commas with surrounding space trimmed.
func assignString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		out := make([]string, len(parts))
		for i, part := range parts {
			out[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(out))
	}
}
