package links

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morehradar/server/internal/model"
)

var klcc = model.Coordinate{Lat: 3.1577, Lng: 101.7119}

func TestNavigationURL(t *testing.T) {
	assert.Equal(t, "https://www.waze.com/ul?ll=3.1577,101.7119&navigate=yes", NavigationURL(klcc, true))
	assert.Equal(t, "https://www.google.com/maps/dir/?api=1&destination=3.1577,101.7119", NavigationURL(klcc, false))
}

func TestWhatsAppShareURL(t *testing.T) {
	s := model.Signal{
		Name:     "SURAU KLCC",
		FoodDesc: "Mee Goreng Mamak",
		Pax:      50,
		Position: klcc,
	}

	shareURL := WhatsAppShareURL(s)
	parsed, err := url.Parse(shareURL)
	require.NoError(t, err)
	assert.Equal(t, "wa.me", parsed.Host)

	text := parsed.Query().Get("text")
	assert.Contains(t, text, "SURAU KLCC ada Mee Goreng Mamak untuk 50 orang!")
	assert.Contains(t, text, WazeURL(klcc))
	assert.Contains(t, text, "Kill Hunger. Kill Waste.")
}
