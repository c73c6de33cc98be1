package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ListResult is the canonical shape of every list endpoint.
// len(Items) is the number of records in this response; Total is the
// backend's count across all pages.
type ListResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// AuthResult is the canonical shape of a login response. It always carries
// a token.
type AuthResult struct {
	Token   string          `json:"token"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

// NormalizeList maps the known list shapes onto ListResult:
//
//	{"data": [...], "pagination": {"total": n}}  -> Items = data, Total = n
//	{"data": [...]}                              -> Items = data, Total = len(data)
//	[...]                                        -> Items = array, Total = len(array)
//
// Anything else yields an empty result. NormalizeList never fails.
func NormalizeList(raw []byte) ListResult[json.RawMessage] {
	trimmed := bytes.TrimSpace(raw)
	empty := ListResult[json.RawMessage]{Items: []json.RawMessage{}}
	if len(trimmed) == 0 {
		return empty
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return empty
		}
		if items == nil {
			items = []json.RawMessage{}
		}
		return ListResult[json.RawMessage]{Items: items, Total: len(items)}

	case '{':
		var envelope struct {
			Data       json.RawMessage `json:"data"`
			Pagination struct {
				Total json.RawMessage `json:"total"`
			} `json:"pagination"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return empty
		}
		var items []json.RawMessage
		data := bytes.TrimSpace(envelope.Data)
		if len(data) == 0 || data[0] != '[' || json.Unmarshal(data, &items) != nil {
			return empty
		}
		if items == nil {
			items = []json.RawMessage{}
		}
		total, ok := numericTotal(envelope.Pagination.Total)
		if !ok {
			total = len(items)
		}
		return ListResult[json.RawMessage]{Items: items, Total: total}
	}
	return empty
}

func numericTotal(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// DecodeList normalizes raw and decodes every item into T.
func DecodeList[T any](raw []byte) (ListResult[T], error) {
	normalized := NormalizeList(raw)
	result := ListResult[T]{Items: make([]T, 0, len(normalized.Items)), Total: normalized.Total}
	for i, item := range normalized.Items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return ListResult[T]{}, fmt.Errorf("%w: item %d: %v", ErrInvalidResponse, i, err)
		}
		result.Items = append(result.Items, v)
	}
	return result, nil
}

// tokenFields is the order in which a login response is searched for a token.
var tokenFields = []struct {
	nested bool
	field  string
}{
	{false, "token"},
	{true, "token"},
	{false, "access_token"},
}

// NormalizeAuth extracts the token from a login response. It looks at
// "token", then "data.token", then "access_token"; the first non-empty
// string wins, and the object it was found in becomes the profile.
// A response without a token is a FailureConstruction error.
func NormalizeAuth(raw []byte) (AuthResult, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &root); err != nil || root == nil {
		return AuthResult{}, NewError(FailureConstruction, "login response is not an object").WithCause(ErrInvalidResponse)
	}

	var data map[string]json.RawMessage
	if rawData, ok := root["data"]; ok {
		_ = json.Unmarshal(rawData, &data)
	}

	for _, candidate := range tokenFields {
		source, profile := root, json.RawMessage(bytes.TrimSpace(raw))
		if candidate.nested {
			if data == nil {
				continue
			}
			source, profile = data, bytes.TrimSpace(root["data"])
		}
		if token := stringField(source, candidate.field); token != "" {
			return AuthResult{Token: token, Profile: profile}, nil
		}
	}
	return AuthResult{}, NewError(FailureConstruction, "login response carries no token")
}

func stringField(obj map[string]json.RawMessage, field string) string {
	raw, ok := obj[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
