package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProductID identifies a product. Backends use numeric or string ids; both
// decode into a ProductID, and purely numeric ids encode back as numbers.
type ProductID string

// UnmarshalJSON accepts a JSON number or string
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a number or string: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

// MarshalJSON encodes numeric ids as numbers and everything else as strings
func (id ProductID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// String returns the id as text
func (id ProductID) String() string {
	return string(id)
}

// Product is a catalogue entry. Raw holds the object exactly as the backend
// sent it, including fields this struct does not model.
type Product struct {
	ID          ProductID `json:"id,omitempty"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Description string    `json:"description,omitempty"`
	CreatedAt   string    `json:"createdAt,omitempty"`
	UpdatedAt   string    `json:"updatedAt,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a product and keeps the raw object
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Product(decoded)
	p.Raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// ProductQuery selects a page of products. Page is zero-based; the client
// translates it to the backend's one-based page parameter.
type ProductQuery struct {
	Page     int
	PageSize int
	Keyword  string
}

// Credentials are sent to the login and register endpoints
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// ExportFile is a binary export downloaded from the backend
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// batchDeleteRequest is the body of a batch delete
type batchDeleteRequest struct {
	IDs []ProductID `json:"ids"`
}
