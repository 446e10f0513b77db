package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// signal-sim stands in for a mosque device: it publishes broadcast drafts
// to the radar's MQTT ingest topic at a fixed interval.

type draftPayload struct {
	Name         string `json:"name"`
	Position     latLng `json:"position"`
	FoodDesc     string `json:"food_desc"`
	Pax          int    `json:"pax"`
	Status       string `json:"status"`
	PostedByName string `json:"posted_by_name,omitempty"`
	LastUpdated  string `json:"last_updated"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	name := flag.String("name", "Masjid Simulasi", "Broadcasting mosque name")
	lat := flag.Float64("lat", 3.1390, "Latitude of the mosque")
	lng := flag.Float64("lng", 101.6869, "Longitude of the mosque")
	food := flag.String("food", "Nasi Lemak + Sambal Sotong", "Food description")
	pax := flag.Int("pax", 50, "Remaining-capacity count")
	interval := flag.Duration("interval", 30*time.Second, "Interval between published broadcasts")
	once := flag.Bool("once", false, "Publish a single broadcast and exit")

	flag.Parse()

	clientID := fmt.Sprintf("morehradar-sim-%s", uuid.NewString())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic := "morehradar/signals/broadcast"

	publish := func() {
		payload := draftPayload{
			Name:         *name,
			Position:     latLng{Lat: *lat, Lng: *lng},
			FoodDesc:     *food,
			Pax:          *pax,
			Status:       "ACTIVE",
			PostedByName: "simulator",
			LastUpdated:  time.Now().UTC().Format(time.RFC3339Nano),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to encode payload: %v", err)
			return
		}

		token := client.Publish(topic, 0, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish error: %v", err)
			return
		}
		log.Printf("published %s name=%q pax=%d", topic, payload.Name, payload.Pax)
	}

	publish()
	if *once {
		client.Disconnect(250)
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}
