package parser

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/aluiziolira/go-harvest-wb/models"
)

const (
	productURLFormat = "https://www.wildberries.ru/catalog/%d/detail.aspx"
	sellerURLFormat  = "https://www.wildberries.ru/seller/%d"
	imageCDNDomain   = "wbbasket.ru"

	linkSeparator = ", "
)

// Extract maps one raw detail payload onto a canonical record. It never
// fails: each field independently falls back to absent when the payload
// carries nothing coercible. The characteristics tree is returned alongside
// the record for the filter predicate and appears in the record only in its
// serialized form.
func Extract(p gjson.Result) (*models.Record, gjson.Result) {
	rec := &models.Record{}

	if id, ok := Identifier(p); ok {
		rec.Article = &id
		rec.URL = fmt.Sprintf(productURLFormat, id)
	}

	rec.Name = p.Get("name").String()
	rec.Price = money(p, "salePriceU", "priceU", "price")
	rec.Description = firstString(p, "description", "descr")
	rec.SellerName = firstString(p, "supplier", "supplierName")
	rec.ImageLinks = imageLinks(p)
	rec.Sizes = sizeNames(p)
	rec.Stock = stockTotal(p)

	if rating, ok := floatValue(p.Get("rating")); ok {
		rec.Rating = &rating
	}
	rec.Reviews = firstInt(p, "feedbacks", "feedbacksCount", "reviews", "commentsCount")

	if supplierID := firstInt(p, "supplierId"); supplierID != nil {
		rec.SellerURL = fmt.Sprintf(sellerURLFormat, *supplierID)
	}

	chars := characteristics(p)
	rec.CharacteristicsJSON = formatJSON(chars.Raw)
	return rec, chars
}

func characteristics(p gjson.Result) gjson.Result {
	if chars, ok := firstField(p, "properties", "options", "characteristics"); ok {
		return chars
	}
	return gjson.Parse("{}")
}

// formatJSON renders the characteristics tree as indented JSON. Unicode
// passes through untouched.
func formatJSON(raw string) string {
	if raw == "" {
		raw = "{}"
	}
	return strings.TrimSuffix(string(pretty.Pretty([]byte(raw))), "\n")
}

// sizeNames joins the size labels, preferring the display name over the
// original one.
func sizeNames(p gjson.Result) string {
	var names []string
	for _, sz := range p.Get("sizes").Array() {
		if name := firstString(sz, "name", "origName"); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, linkSeparator)
}

// stockTotal sums the quantity of every stock entry across all sizes.
// Non-coercible entries contribute zero.
func stockTotal(p gjson.Result) int64 {
	var total int64
	for _, sz := range p.Get("sizes").Array() {
		for _, st := range sz.Get("stocks").Array() {
			if qty, ok := intValue(st.Get("qty")); ok {
				total += qty
			}
		}
	}
	return total
}

// imageLinks derives CDN image URLs from the identifier alone: the basket
// shard, volume, and part segments are integer divisions of the identifier,
// so no extra lookup call is needed. Missing or non-numeric identifier or
// picture count yields an empty list.
func imageLinks(p gjson.Result) string {
	id, ok := Identifier(p)
	if !ok {
		return ""
	}
	pics, ok := intValue(p.Get("pics"))
	if !ok {
		return ""
	}

	host := fmt.Sprintf("https://basket-%02d.%s", id/100000, imageCDNDomain)
	links := make([]string, 0, pics)
	for i := int64(1); i <= pics; i++ {
		links = append(links, fmt.Sprintf("%s/vol%d/part%d/%d/images/big/%d.jpg", host, id/100000, id/1000, id, i))
	}
	return strings.Join(links, linkSeparator)
}
