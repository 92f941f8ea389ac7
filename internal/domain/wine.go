// Package domain holds the entity types shared by every CORE subsystem:
// Pairing Engine, Vintage Intelligence, Inventory Ledger, and Learning &
// Experimentation. Entities are plain structs; persistence, caching, and
// HTTP concerns live in their own packages.
package domain

import "time"

// WineType enumerates the recognized wine categories.
type WineType string

const (
	WineTypeRed       WineType = "Red"
	WineTypeWhite     WineType = "White"
	WineTypeRose      WineType = "Rosé"
	WineTypeSparkling WineType = "Sparkling"
	WineTypeDessert   WineType = "Dessert"
	WineTypeFortified WineType = "Fortified"
	WineTypeOther     WineType = "Other"
)

// Wine is the stable identity for a bottling; immutable after creation
// except via an admin edit. Aliases attach to it but do not mutate it.
type Wine struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Producer        string   `json:"producer"`
	Region          string   `json:"region"`
	Country         string   `json:"country"`
	WineType        WineType `json:"wine_type"`
	GrapeVarieties  []string `json:"grape_varieties"`
	Style           string   `json:"style"`
	TastingNotes    string   `json:"tasting_notes"`
	StorageHints    string   `json:"storage_hints"`
	Aliases         []string `json:"aliases,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Vintage belongs to exactly one Wine. Scores are nullable until enrichment
// or manual entry populates them.
type Vintage struct {
	ID                string     `json:"id"`
	WineID            string     `json:"wine_id"`
	Year              int        `json:"year"`
	QualityScore      *float64   `json:"quality_score,omitempty"`
	WeatherScore      *float64   `json:"weather_score,omitempty"`
	CriticScore       *float64   `json:"critic_score,omitempty"`
	PeakDrinkingStart *int       `json:"peak_drinking_start,omitempty"`
	PeakDrinkingEnd   *int       `json:"peak_drinking_end,omitempty"`
	WeatherJSON       string     `json:"weather_json,omitempty"`
	ProcurementJSON   string     `json:"procurement_json,omitempty"`
	NotesText         string     `json:"notes_text,omitempty"`
	EnrichedAt        *time.Time `json:"enriched_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Supplier is a vendor of wine inventory.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Rating    int       `json:"rating"` // 1..5
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AvailabilityStatus enumerates price-book availability states.
type AvailabilityStatus string

const (
	AvailabilityInStock  AvailabilityStatus = "In Stock"
	AvailabilityLimited  AvailabilityStatus = "Limited"
	AvailabilityAllocated AvailabilityStatus = "Allocated"
	AvailabilityOut      AvailabilityStatus = "Out"
)

// PriceBookEntry maps (vintage, supplier) to a quoted price.
type PriceBookEntry struct {
	ID                 string             `json:"id"`
	VintageID          string             `json:"vintage_id"`
	SupplierID         string             `json:"supplier_id"`
	PricePerBottle     float64            `json:"price_per_bottle"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status"`
	LastUpdated        time.Time          `json:"last_updated"`
}
