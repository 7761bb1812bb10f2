package inquiry

import (
	"math"
	"strconv"
	"strings"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// Extract maps flat result records onto the layout's keyspace. It is pure and never fails.
//
// Records outside the layout are ignored. Missing, empty and "0" offers leave the
// cell untouched. Unparseable offers, and offers that parse to zero, NaN or Inf,
// store Absent. Later records for the same cell win.
func Extract(records []ResultItem, layout model.Layout) model.QuoteTable {
	table := model.NewQuoteTable(layout)
	for _, r := range records {
		si, ok := layout.StructureIndex(r.Structure)
		if !ok {
			continue
		}
		vi, ok := layout.VendorIndex(r.BrokerName)
		if !ok {
			continue
		}
		raw := strings.TrimSpace(r.Offer.Raw)
		if !r.Offer.Valid || raw == "" || raw == "0" {
			continue
		}
		table.Set(si, vi, parseOffer(raw))
	}
	return table
}

func parseOffer(raw string) model.Cell {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return model.Absent
	}
	return model.Quoted(v)
}
