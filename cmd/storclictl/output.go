package main

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

func outputFormat(s string) (string, error) {
	switch f := strings.ToLower(s); f {
	case "json", "yaml":
		return f, nil
	case "yml":
		return "yaml", nil
	}
	return "", fmt.Errorf("unknown output format %q (json or yaml)", s)
}

// render writes v as indented JSON or as YAML. YAML goes through JSON first
// so struct tags and json.Number payloads render the same in both.
func render(w io.Writer, format string, v any) error {
	f, err := outputFormat(format)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if f == "json" {
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}

	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
