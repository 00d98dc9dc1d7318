// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cms

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Query holds the list parameters understood by the CMS.
type Query struct {
	Fields  []string
	Limit   int
	Offset  int
	Orders  string
	Q       string
	Filters string
}

// Values encodes the non-zero parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.Fields) > 0 {
		v.Set("fields", strings.Join(q.Fields, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Orders != "" {
		v.Set("orders", q.Orders)
	}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Filters != "" {
		v.Set("filters", q.Filters)
	}
	return v
}

// ListResponse is the envelope of a list endpoint.
type ListResponse struct {
	Contents   []json.RawMessage `json:"contents"`
	TotalCount int               `json:"totalCount"`
	Offset     int               `json:"offset"`
	Limit      int               `json:"limit"`
}

// Decode unmarshals every content item into out, which must be a pointer to
// a slice.
func (r *ListResponse) Decode(out any) error {
	raw, err := json.Marshal(r.Contents)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
