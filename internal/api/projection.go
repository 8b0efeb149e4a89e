package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// parseFields splits the comma-separated "fields" query parameter.
func parseFields(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// project keeps only the requested top-level keys of data, which may be a
// single record or a list of records. "id" is always kept. A "children"
// key is kept too and its records are projected the same way.
func project(data interface{}, fields []string) (interface{}, error) {
	if len(fields) == 0 {
		return data, nil
	}
	keep := map[string]bool{"id": true}
	for _, f := range fields {
		keep[f] = true
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("api: failed to encode records for projection: %w", err)
	}
	return projectRaw(raw, keep)
}

func projectRaw(raw json.RawMessage, keep map[string]bool) (interface{}, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]interface{}, 0, len(list))
		for _, item := range list {
			projected, err := projectRaw(item, keep)
			if err != nil {
				return nil, err
			}
			out = append(out, projected)
		}
		return out, nil
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("api: failed to decode record for projection: %w", err)
	}
	out := make(map[string]interface{}, len(keep)+1)
	for key, value := range record {
		switch {
		case key == "children":
			children, err := projectRaw(value, keep)
			if err != nil {
				return nil, err
			}
			out[key] = children
		case keep[key]:
			out[key] = value
		}
	}
	return out, nil
}
