package models

import "time"

// Product is a catalogue entry. ProductCode is a human-readable sparse
// identifier: NULL is allowed on any number of rows, uniqueness is only
// enforced among non-null values. Missing codes are assigned in bulk by
// the backfill maintenance operation, never on insert.
type Product struct {
	ID          string    `db:"id" json:"id"`
	ProductCode *string   `db:"product_code" json:"product_code,omitempty"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category"`
	Composition string    `db:"composition" json:"composition"`
	DosageForm  string    `db:"dosage_form" json:"dosage_form"`
	MRP         float64   `db:"mrp" json:"mrp"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProductFilter captures listing criteria for the catalogue.
type ProductFilter struct {
	Category string
	Search   string
	Page     int
	PageSize int
}
