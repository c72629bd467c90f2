package service

import (
	"fmt"

	json "github.com/goccy/go-json"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

// ResultMap is the wire and CLI rendering of a Result.
func ResultMap(res storcli.Result) map[string]any {
	m := map[string]any{
		"ok":      res.OK,
		"kind":    string(res.Kind),
		"code":    res.Code,
		"command": res.Command,
	}
	if res.Detail != "" {
		m["detail"] = res.Detail
	}
	if res.Payload != nil {
		m["payload"] = res.Payload
	}
	if res.Response.Output != "" {
		m["output"] = res.Response.Output
	}
	return m
}

// toStruct converts any JSON-encodable value into a Struct. Payload numbers
// arrive as json.Number, which structpb does not take directly.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return out, nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
	}
	return fmt.Sprint(v)
}
