package model

import "time"

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Status describes whether a signal still has food available.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// FallbackPosition is used when a broadcaster's location is unavailable
// (Kuala Lumpur city centre).
var FallbackPosition = Coordinate{Lat: 3.1390, Lng: 101.6869}

// DefaultMaxDistanceKm is the default feed distance cap.
const DefaultMaxDistanceKm = 15.0

// Signal is one surplus-food broadcast from a mosque or surau.
type Signal struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Position      Coordinate `json:"position"`
	FoodDesc      string     `json:"food_desc"`
	Pax           int        `json:"pax"`
	Claims        int        `json:"claims"`
	Status        Status     `json:"status"`
	PostedByName  string     `json:"posted_by_name,omitempty"`
	PostedByEmail string     `json:"posted_by_email,omitempty"`
	LastUpdated   time.Time  `json:"last_updated"`
}

// Draft is the payload for a new broadcast; the store assigns the ID.
type Draft struct {
	Name          string     `json:"name"`
	Position      Coordinate `json:"position"`
	FoodDesc      string     `json:"food_desc"`
	Pax           int        `json:"pax"`
	Status        Status     `json:"status"`
	PostedByName  string     `json:"posted_by_name,omitempty"`
	PostedByEmail string     `json:"posted_by_email,omitempty"`
	LastUpdated   time.Time  `json:"last_updated"`
}

// RankedSignal annotates a signal with the viewer-relative distance.
// DistanceKm is nil when the viewer position is unknown; it is never
// persisted.
type RankedSignal struct {
	Signal
	DistanceKm *float64 `json:"distance_km"`
}

// SeedSignals returns the demo dataset of real KL mosque locations used
// when no backing store is configured. Timestamps are offsets from now so
// the relative-age labels stay sensible.
func SeedSignals(now time.Time) []Signal {
	return []Signal{
		{
			ID:          1,
			Name:        "MASJID WILAYAH PERSEKUTUAN",
			Position:    Coordinate{Lat: 3.1710, Lng: 101.6935},
			FoodDesc:    "Nasi Lemak + Ayam Rendang",
			Pax:         120,
			Status:      StatusActive,
			LastUpdated: now.Add(-10 * time.Minute),
		},
		{
			ID:          2,
			Name:        "MASJID NEGARA",
			Position:    Coordinate{Lat: 3.1415, Lng: 101.6919},
			FoodDesc:    "Bihun Goreng + Karipap",
			Pax:         80,
			Status:      StatusActive,
			LastUpdated: now.Add(-25 * time.Minute),
		},
		{
			ID:          3,
			Name:        "SURAU KLCC",
			Position:    Coordinate{Lat: 3.1577, Lng: 101.7119},
			FoodDesc:    "Mee Goreng Mamak + Teh Tarik",
			Pax:         50,
			Status:      StatusActive,
			LastUpdated: now.Add(-5 * time.Minute),
		},
		{
			ID:          4,
			Name:        "MASJID AS-SYAKIRIN",
			Position:    Coordinate{Lat: 3.1558, Lng: 101.7137},
			FoodDesc:    "Roti Canai + Dal",
			Pax:         200,
			Status:      StatusActive,
			LastUpdated: now.Add(-3 * time.Minute),
		},
		{
			ID:          5,
			Name:        "SURAU BANGSAR",
			Position:    Coordinate{Lat: 3.1300, Lng: 101.6710},
			FoodDesc:    "Nasi Briyani Kambing",
			Pax:         0,
			Status:      StatusFinished,
			LastUpdated: now.Add(-90 * time.Minute),
		},
		{
			ID:          6,
			Name:        "MASJID JAMEK",
			Position:    Coordinate{Lat: 3.1491, Lng: 101.6945},
			FoodDesc:    "Bubur Lambuk + Kuih Muih",
			Pax:         30,
			Status:      StatusActive,
			LastUpdated: now.Add(-15 * time.Minute),
		},
	}
}
