// Script to seed a local catalog database with synthetic oblique photos
// for development. Usage: go run scripts/seed_catalog.go [path]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/rkm/skyfoto-stac-api/internal/stac"
	"github.com/rkm/skyfoto-stac-api/internal/storage/sqlite"
)

var directions = []string{"north", "east", "south", "west", "nadir"}

var vintages = map[string]int{
	"skyfotos2017": 2017,
	"skyfotos2019": 2019,
	"skyfotos2021": 2021,
}

func main() {
	path := "./skyfotos.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(path, "1.0.0", logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	total := 0
	for collection, year := range vintages {
		for i := 0; i < 200; i++ {
			item := buildItem(rng, collection, year, i)
			if err := store.InsertItem(ctx, item); err != nil {
				fmt.Fprintf(os.Stderr, "error inserting %s: %v\n", item.Id, err)
				os.Exit(1)
			}
			total++
		}
	}

	fmt.Printf("seeded %d items into %s\n", total, path)
}

func buildItem(rng *rand.Rand, collection string, year, seq int) *stac.Item {
	// Footprints scattered over Denmark.
	lon := 8.0 + rng.Float64()*4.5
	lat := 54.5 + rng.Float64()*3.0

	acquired := time.Date(year, time.April, 1, 8, 0, 0, 0, time.UTC).
		Add(time.Duration(rng.Intn(180*24)) * time.Hour)

	item := stac.NewItem(fmt.Sprintf("%s-%04d", collection, seq), collection, "1.0.0")
	item.Properties["datetime"] = acquired.Format(time.RFC3339)
	item.Properties["direction"] = directions[rng.Intn(len(directions))]
	item.Properties["gsd"] = 0.05 + rng.Float64()*0.1
	item.Properties["camera_id"] = fmt.Sprintf("cam-%02d", rng.Intn(8))
	item.Properties["photo_type"] = "oblique"
	item.Properties["producer"] = "skyfoto"
	if collection == "skyfotos2021" {
		item.Properties["sensor_rows"] = 14192
	}
	item.Geometry = map[string]any{
		"type": "Polygon",
		"coordinates": []any{[]any{
			[]any{lon, lat},
			[]any{lon + 0.01, lat},
			[]any{lon + 0.01, lat + 0.008},
			[]any{lon, lat + 0.008},
			[]any{lon, lat},
		}},
	}
	item.Assets["photo"] = &stac.Asset{
		Href:  fmt.Sprintf("https://example.com/photos/%s/%04d.tif", collection, seq),
		Type:  "image/tiff; application=geotiff",
		Roles: []string{"data"},
	}
	return item
}
