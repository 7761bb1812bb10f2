package inquiry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CreateRequest is the body of POST {CREATE_URL}.
type CreateRequest struct {
	StockCode  string   `json:"stockCode"`
	Type       int      `json:"type"`
	Scale      int      `json:"scale"`
	Deadline   string   `json:"deadline"`
	Structures []string `json:"structures"`
	Vendors    []string `json:"vendors"`
}

// CreateResponse is the envelope returned by the creation endpoint.
// Code is nil when the field is missing, which is a malformed response.
type CreateResponse struct {
	Code *int      `json:"code"`
	Data RequestID `json:"data"`
	Msg  string    `json:"msg"`
}

// ResultResponse is the envelope returned by GET {RESULT_URL}?id=...
type ResultResponse struct {
	Code *int       `json:"code"`
	Data ResultData `json:"data"`
	Msg  string     `json:"msg"`
}

// ResultData holds the computed quote records.
type ResultData struct {
	Items []ResultItem `json:"items"`
}

// ResultItem is one flat quote record.
type ResultItem struct {
	Structure  string `json:"structure"`
	BrokerName string `json:"brokerName"`
	Offer      Offer  `json:"offer"`
}

// RequestID is the opaque inquiry handle. The backend sends an integer today;
// strings are accepted too. Empty means no identifier.
type RequestID string

func (id *RequestID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RequestID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("request id: %w", err)
		}
		*id = RequestID(n.String())
	}
	return nil
}

// Offer is the raw offer field: a string, a bare number, or null.
// Any other JSON value is kept verbatim so only its own cell fails to parse.
type Offer struct {
	Raw   string
	Valid bool
}

// OfferOf builds a present offer.
func OfferOf(raw string) Offer { return Offer{Raw: raw, Valid: true} }

func (o *Offer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*o = Offer{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = OfferOf(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*o = OfferOf(string(b))
		return nil
	}
	*o = OfferOf(n.String())
	return nil
}

func (o Offer) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(o.Raw)), nil
}
