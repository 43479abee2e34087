package tenderboard

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// CountPage is the page value asking the portal for the page count only
const CountPage = -1

// Filter selects which tenders the listing endpoints return
type Filter struct {
	TenderNumber         string `json:"tenderNumber"`
	Ministry             string `json:"ministry"`
	Category             string `json:"category"`
	ClosingDateFilter    string `json:"closingDate_filter"`
	PublicTenderOnly     bool   `json:"publicTenderOnly"`
	PrequalificationOnly bool   `json:"prequalificationOnly"`
	AuctionOnly          bool   `json:"auctionOnly"`
	SortingType          string `json:"sortingType"`
	ListPage             string `json:"listPage"`
}

// DefaultFilter returns the filter the public listing page starts with
func DefaultFilter() Filter {
	return Filter{
		Ministry:         "0",
		Category:         "0",
		PublicTenderOnly: true,
		AuctionOnly:      true,
		SortingType:      "0",
		ListPage:         "mainList",
	}
}

// wire form; the web service expects every value as a string
type filterPayload struct {
	TenderNumber         string `json:"tenderNumber"`
	Ministry             string `json:"ministry"`
	Category             string `json:"category"`
	ClosingDateFilter    string `json:"closingDate_filter"`
	PublicTenderOnly     string `json:"publicTenderOnly"`
	PrequalificationOnly string `json:"prequalificationOnly"`
	AuctionOnly          string `json:"auctionOnly"`
	SortingType          string `json:"sortingType"`
	ListPage             string `json:"listPage"`
	Page                 string `json:"Page"`
}

// Payload serializes the filter for the given page
func (f Filter) Payload(page int) ([]byte, error) {
	return json.Marshal(filterPayload{
		TenderNumber:         f.TenderNumber,
		Ministry:             f.Ministry,
		Category:             f.Category,
		ClosingDateFilter:    f.ClosingDateFilter,
		PublicTenderOnly:     strconv.FormatBool(f.PublicTenderOnly),
		PrequalificationOnly: strconv.FormatBool(f.PrequalificationOnly),
		AuctionOnly:          strconv.FormatBool(f.AuctionOnly),
		SortingType:          f.SortingType,
		ListPage:             f.ListPage,
		Page:                 strconv.Itoa(page),
	})
}

// LoadFilterFile overlays the keys present in a JSON5 file onto base
func LoadFilterFile(path string, base Filter) (Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read filter file: %w", err)
	}
	f := base
	if err := json5.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parse filter file %s: %w", path, err)
	}
	return f, nil
}

// ResolveMinistry finds a ministry by raw value or by case-insensitive name
func ResolveMinistry(ministries []Ministry, query string) (Ministry, bool) {
	query = strings.TrimSpace(query)
	for _, m := range ministries {
		if m.Value == query {
			return m, true
		}
	}
	for _, m := range ministries {
		if strings.EqualFold(m.Name, query) {
			return m, true
		}
	}
	return Ministry{}, false
}
