package parser

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestMoneyNormalization(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
		absent  bool
	}{
		{name: "minor units", payload: `{"salePriceU":123456}`, want: 1234.56},
		{name: "fallback to priceU", payload: `{"salePriceU":null,"priceU":200000}`, want: 2000},
		{name: "non-numeric skipped", payload: `{"salePriceU":"abc","price":9900}`, want: 99},
		{name: "zero price wins", payload: `{"salePriceU":0,"priceU":200000}`, want: 0},
		{name: "all absent", payload: `{}`, absent: true},
		{name: "all invalid", payload: `{"salePriceU":"x","priceU":{},"price":null}`, absent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := money(gjson.Parse(tt.payload), "salePriceU", "priceU", "price")
			if tt.absent {
				if got != nil {
					t.Fatalf("price = %v, want absent", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("price absent, want %v", tt.want)
			}
			if *got != tt.want {
				t.Fatalf("price = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestImageLinkDerivation(t *testing.T) {
	p := gjson.Parse(`{"id":123456789,"pics":2}`)
	got := imageLinks(p)

	want := "https://basket-1234.wbbasket.ru/vol1234/part123456/123456789/images/big/1.jpg, " +
		"https://basket-1234.wbbasket.ru/vol1234/part123456/123456789/images/big/2.jpg"
	if got != want {
		t.Fatalf("image links = %q, want %q", got, want)
	}
}

func TestImageLinkDerivationDegrades(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing id", payload: `{"pics":2}`},
		{name: "missing pics", payload: `{"id":123456789}`},
		{name: "non-numeric pics", payload: `{"id":123456789,"pics":"many"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := imageLinks(gjson.Parse(tt.payload)); got != "" {
				t.Fatalf("image links = %q, want empty", got)
			}
		})
	}
}

func TestSizeNamesFallback(t *testing.T) {
	p := gjson.Parse(`{"sizes":[{"name":"S"},{"origName":"M"},{"name":"","origName":"L"},{}]}`)
	if got := sizeNames(p); got != "S, M, L" {
		t.Fatalf("sizes = %q, want %q", got, "S, M, L")
	}
}

func TestStockTotalToleratesGarbage(t *testing.T) {
	p := gjson.Parse(`{"sizes":[
		{"stocks":[{"qty":2},{"qty":"3"}]},
		{"stocks":[{"qty":"none"},{"qty":null},{}]},
		{"stocks":[{"qty":4}]}
	]}`)
	if got := stockTotal(p); got != 9 {
		t.Fatalf("stock = %d, want 9", got)
	}
}

func TestExtractFullPayload(t *testing.T) {
	payload := `{
		"id": 123456789,
		"name": "Пальто шерстяное",
		"salePriceU": 987600,
		"descr": "Классическое пальто",
		"pics": 1,
		"supplier": "Фабрика",
		"supplierId": 42,
		"rating": "4.7",
		"feedbacks": "abc",
		"reviews": 12,
		"sizes": [{"name":"44","stocks":[{"qty":5},{"qty":2}]}],
		"options": [{"Страна производства":"Россия"}]
	}`

	rec, chars := Extract(gjson.Parse(payload))

	if rec.Article == nil || *rec.Article != 123456789 {
		t.Fatalf("article = %v, want 123456789", rec.Article)
	}
	if rec.URL != "https://www.wildberries.ru/catalog/123456789/detail.aspx" {
		t.Fatalf("unexpected product url %q", rec.URL)
	}
	if rec.Name != "Пальто шерстяное" {
		t.Fatalf("name = %q", rec.Name)
	}
	if rec.Price == nil || *rec.Price != 9876 {
		t.Fatalf("price = %v, want 9876", rec.Price)
	}
	if rec.Description != "Классическое пальто" {
		t.Fatalf("description = %q", rec.Description)
	}
	if rec.SellerName != "Фабрика" {
		t.Fatalf("seller = %q", rec.SellerName)
	}
	if rec.SellerURL != "https://www.wildberries.ru/seller/42" {
		t.Fatalf("seller url = %q", rec.SellerURL)
	}
	if rec.Rating == nil || *rec.Rating != 4.7 {
		t.Fatalf("rating = %v, want 4.7", rec.Rating)
	}
	if rec.Reviews == nil || *rec.Reviews != 12 {
		t.Fatalf("reviews = %v, want 12 (feedbacks should be skipped as non-coercible)", rec.Reviews)
	}
	if rec.Sizes != "44" {
		t.Fatalf("sizes = %q", rec.Sizes)
	}
	if rec.Stock != 7 {
		t.Fatalf("stock = %d, want 7", rec.Stock)
	}
	if !strings.Contains(rec.ImageLinks, "/123456789/images/big/1.jpg") {
		t.Fatalf("image links = %q", rec.ImageLinks)
	}
	if !strings.Contains(rec.CharacteristicsJSON, "Россия") {
		t.Fatalf("characteristics should preserve unicode, got %q", rec.CharacteristicsJSON)
	}
	if !chars.IsArray() {
		t.Fatalf("characteristics tree should be the raw options array")
	}
}

func TestExtractWithoutIdentifier(t *testing.T) {
	rec, chars := Extract(gjson.Parse(`{"name":"безымянный","pics":3}`))

	if rec.Article != nil {
		t.Fatalf("article = %v, want absent", rec.Article)
	}
	if rec.URL != "" {
		t.Fatalf("url = %q, want empty", rec.URL)
	}
	if rec.ImageLinks != "" {
		t.Fatalf("image links = %q, want empty", rec.ImageLinks)
	}
	if rec.CharacteristicsJSON != "{}" {
		t.Fatalf("characteristics = %q, want {}", rec.CharacteristicsJSON)
	}
	if chars.IsArray() {
		t.Fatalf("characteristics tree should default to an empty object")
	}
}

func TestIdentifierFallback(t *testing.T) {
	if id, ok := Identifier(gjson.Parse(`{"nmId":77}`)); !ok || id != 77 {
		t.Fatalf("identifier = %d/%v, want 77/true", id, ok)
	}
	if id, ok := Identifier(gjson.Parse(`{"id":"88"}`)); !ok || id != 88 {
		t.Fatalf("identifier = %d/%v, want 88/true", id, ok)
	}
	if _, ok := Identifier(gjson.Parse(`{"id":"abc"}`)); ok {
		t.Fatalf("non-numeric identifier should be absent")
	}
}
