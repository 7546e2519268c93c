package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

type skuBody struct {
	SKU         flexString `json:"sku"`
	Environment string     `json:"environment"`
}

type queryBody struct {
	SQL         string `json:"sql"`
	Params      []any  `json:"params"`
	Environment string `json:"environment"`
}

// flexString accepts a JSON string or number; item numbers are often sent
// as numbers by hand-written clients. A numeric zero counts as absent.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("sku must be a string or number")
		}
		if v, err := n.Float64(); err == nil && v == 0 {
			*f = ""
			return nil
		}
		*f = flexString(n.String())
		return nil
	}
}

// decodeBody reads at most maxBodyBytes of JSON into v. An empty body leaves
// v untouched so required-field validation reports what is missing.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		default:
			return fmt.Errorf("malformed JSON body: %w", err)
		}
	}
	return nil
}

// bindParams turns decoded JSON values into driver arguments. Integral
// numbers bind as int64, the rest as float64.
func bindParams(in []any) ([]any, error) {
	out := make([]any, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case json.Number:
			if n, err := x.Int64(); err == nil {
				out[i] = n
				continue
			}
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("params[%d]: %w", i, err)
			}
			out[i] = f
		case nil, string, bool:
			out[i] = x
		default:
			return nil, fmt.Errorf("params[%d]: unsupported parameter type %T", i, v)
		}
	}
	return out, nil
}
