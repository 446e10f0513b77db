// Package links assembles the outbound navigation and share deep links.
package links

import (
	"fmt"
	"net/url"

	"morehradar/server/internal/model"
)

// WazeURL returns a Waze navigation deep link to the coordinate.
func WazeURL(c model.Coordinate) string {
	return fmt.Sprintf("https://www.waze.com/ul?ll=%g,%g&navigate=yes", c.Lat, c.Lng)
}

// GoogleMapsURL returns a Google Maps directions link to the coordinate.
func GoogleMapsURL(c model.Coordinate) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%g,%g", c.Lat, c.Lng)
}

// NavigationURL picks Waze on mobile devices and Google Maps elsewhere.
func NavigationURL(c model.Coordinate, mobile bool) string {
	if mobile {
		return WazeURL(c)
	}
	return GoogleMapsURL(c)
}

// WhatsAppShareURL returns a wa.me link carrying the templated share text
// for a signal.
func WhatsAppShareURL(s model.Signal) string {
	text := fmt.Sprintf("🕌 %s ada %s untuk %d orang!\n\n📍 Pergi sekarang: %s\n\n🟢 Moreh Radar — Kill Hunger. Kill Waste.",
		s.Name, s.FoodDesc, s.Pax, WazeURL(s.Position))
	return "https://wa.me/?text=" + url.QueryEscape(text)
}
