// Package models defines data structures for the harvester.
package models

import "time"

// Record is the canonical, normalized representation of one catalog item.
// Pointer fields are absent when the upstream payload carried nothing usable.
type Record struct {
	URL                 string   `csv:"url" json:"url,omitempty"`
	Article             *int64   `csv:"article" json:"article,omitempty"`
	Name                string   `csv:"name" json:"name,omitempty"`
	Price               *float64 `csv:"price" json:"price,omitempty"`
	Description         string   `csv:"description" json:"description,omitempty"`
	ImageLinks          string   `csv:"image_links" json:"image_links,omitempty"`
	CharacteristicsJSON string   `csv:"characteristics_json" json:"characteristics_json,omitempty"`
	SellerName          string   `csv:"seller_name" json:"seller_name,omitempty"`
	SellerURL           string   `csv:"seller_url" json:"seller_url,omitempty"`
	Sizes               string   `csv:"sizes" json:"sizes,omitempty"`
	Stock               int64    `csv:"stock" json:"stock"`
	Rating              *float64 `csv:"rating" json:"rating,omitempty"`
	Reviews             *int64   `csv:"review_count" json:"review_count,omitempty"`
}

// Counters tracks how every detail fetch of a run settled.
type Counters struct {
	Full     int
	Filtered int
	Empty    int
	Failed   int
}

// Total is the number of detail fetches accounted for.
func (c Counters) Total() int {
	return c.Full + c.Empty + c.Failed
}

// HarvestResult holds the overall outcome of one harvest run.
type HarvestResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Pages          int
	UniqueArticles int
	RetryCount     int
	Counters       Counters
}
