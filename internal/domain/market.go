package domain

// Market is an equities market enumeration. This spec targets US only;
// the type exists so producers and stores don't need to be revisited to
// add CN/HK support later.
type Market string

const (
	MarketUS Market = "US"
	MarketCN Market = "CN"
	MarketHK Market = "HK"
)
