package grpcapi

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/configstore"
)

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func intField(s *structpb.Struct, name string) int {
	return int(s.GetFields()[name].GetNumberValue())
}

// pathField accepts "path" as a dotted string or a list of keys.
func pathField(s *structpb.Struct) []string {
	v := s.GetFields()["path"]
	if lv := v.GetListValue(); lv != nil {
		out := make([]string, 0, len(lv.GetValues()))
		for _, e := range lv.GetValues() {
			out = append(out, e.GetStringValue())
		}
		return out
	}
	if str := v.GetStringValue(); str != "" {
		return []string{str}
	}
	return nil
}

func stringList(items []string) *structpb.ListValue {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(items))}
	for _, it := range items {
		out.Values = append(out.Values, structpb.NewStringValue(it))
	}
	return out
}

func anyStrings(items []string) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// parseResultStruct encodes a parse result. Struct fields are unordered,
// so "paths" lists every node path in configuration order alongside the
// "tree" map.
func parseResultStruct(res *config.ParseResult) (*structpb.Struct, error) {
	paths := []any{}
	res.Tree.Walk(func(path []string, _ *config.Node) bool {
		paths = append(paths, anyStrings(path))
		return true
	})

	errs := make([]any, 0, len(res.Errors))
	for _, pe := range res.Errors {
		errs = append(errs, map[string]any{
			"line":      pe.Line,
			"text":      pe.Text,
			"ancestors": anyStrings(pe.Ancestors),
			"error":     pe.Err.Error(),
		})
	}

	return structpb.NewStruct(map[string]any{
		"tree":   res.Tree.ToMap(),
		"paths":  paths,
		"errors": errs,
	})
}

func deviceFields(s *configstore.Snapshot) map[string]any {
	return map[string]any{
		"name":      s.Device,
		"source":    s.Source,
		"indent":    s.Indent,
		"blocks":    s.Result.Tree.Len(),
		"anomalies": len(s.Result.Errors),
		"digest":    s.Digest,
		"loaded_at": s.LoadedAt.Format(time.RFC3339),
	}
}
