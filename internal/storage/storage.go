package storage

import (
	"time"
)

// Product is the upserted read model for one catalog product.
type Product struct {
	Code             string    `bson:"code"               json:"code"`
	Name             string    `bson:"name"               json:"name"`
	Link             string    `bson:"link"               json:"link"`
	ImageURL         string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Category         string    `bson:"category"           json:"category"`
	CurrentPrice     *float64  `bson:"current_price,omitempty" json:"current_price,omitempty"`
	ConvenienceScore *float64  `bson:"convenience_score,omitempty" json:"convenience_score,omitempty"`
	FirstSeenAt      time.Time `bson:"first_seen_at"      json:"first_seen_at"`
	LastCheckedAt    time.Time `bson:"last_checked_at"    json:"last_checked_at"`

	// Derived at read time, never stored.
	IsPriceOK          bool    `bson:"-" json:"is_price_ok"`
	IsLowestAllTime    bool    `bson:"-" json:"is_lowest_all_time"`
	DiscountPercentage float64 `bson:"-" json:"discount_percentage"`
}

// PriceObservation is one appended price reading. Append-only from the
// crawler's side; the scorer only reads it.
type PriceObservation struct {
	Code             string    `bson:"code"                        json:"code"`
	Price            float64   `bson:"price"                       json:"price"`
	OrdinaryPrice    *float64  `bson:"ordinary_price,omitempty"    json:"ordinary_price,omitempty"`
	ComparativePrice *float64  `bson:"comparative_price,omitempty" json:"comparative_price,omitempty"`
	Tags             []string  `bson:"tags,omitempty"              json:"tags,omitempty"`
	Timestamp        time.Time `bson:"timestamp"                   json:"timestamp"`
}
