// Package raid models the storcli object hierarchy (controllers, virtual
// drives, enclosures, drives and cache vaults) on top of pkg/storcli.
//
// Every type is a thin handle: it holds identifiers and a Runner and issues
// one storcli command per call. Reads go through the response cache of the
// Runner; setters are mutating commands and invalidate the cached state of
// their controller.
package raid

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

// Runner executes storcli commands. *storcli.StorCLI implements it.
type Runner interface {
	Run(ctx context.Context, cmd storcli.Command, opts ...storcli.RunOption) (storcli.Result, error)
}

// run issues args under the object path name. Failures always come back as
// errors regardless of the Runner's default mode.
func run(ctx context.Context, r Runner, name string, args []string, opts ...storcli.RunOption) (storcli.Result, error) {
	full := make([]string, 0, len(args)+1)
	if name != "" {
		full = append(full, name)
	}
	full = append(full, args...)
	opts = append([]storcli.RunOption{storcli.WithMode(storcli.ModeError)}, opts...)
	return r.Run(ctx, storcli.NewCommand(full...), opts...)
}

// data runs args and returns the first controller's Response Data.
func data(ctx context.Context, r Runner, name string, args []string, opts ...storcli.RunOption) (map[string]any, error) {
	res, err := run(ctx, r, name, args, opts...)
	if err != nil {
		return nil, err
	}
	return res.Data(), nil
}

// commandStatus runs a mutating command and returns its Command Status.
func commandStatus(ctx context.Context, r Runner, name string, args ...string) (map[string]any, error) {
	res, err := run(ctx, r, name, args)
	if err != nil {
		return nil, err
	}
	return res.Response.CommandStatus(), nil
}

// exists probes name with "show" and reports a missing object as
// DeviceNotFound.
func exists(ctx context.Context, r Runner, object, name string) error {
	_, err := run(ctx, r, name, []string{"show"})
	if err == nil {
		return nil
	}
	switch storcli.KindOf(err) {
	case storcli.KindBinaryNotFound, storcli.KindPermissionDenied, storcli.KindTimeout:
		return err
	}
	return &storcli.Error{
		Kind:    storcli.KindDeviceNotFound,
		Code:    -1,
		Detail:  fmt.Sprintf("%s %s not found", object, name),
		Command: name + " show",
		Err:     err,
	}
}

func missingKey(name, key string) error {
	return &storcli.Error{
		Kind:   storcli.KindUnclassified,
		Code:   -1,
		Detail: fmt.Sprintf("%s: response has no %q", name, key),
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// asString renders scalars the way the binary printed them. Numbers are
// decoded as json.Number and print without loss.
func asString(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func asInt(v any) (int, bool) {
	n, err := strconv.Atoi(asString(v))
	return n, err == nil
}

// firstKey returns the value of the first key of keys present in m.
func firstKey(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// properties flattens a list of {Ctrl_Prop, Value} rows.
func properties(rows []map[string]any, keyField string) map[string]string {
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[asString(row[keyField])] = asString(row["Value"])
	}
	return out
}

// onOff lowercases a vendor on/off value.
func onOff(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
