package courier

import (
	"math"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ostrovmarket/fulfillment/internal/inventory"
)

// buildRoute orders the dropoffs by repeatedly visiting the nearest
// unvisited stop, starting from the warehouse.
func buildRoute(courierID int64, start *Location, warehouse inventory.Warehouse, tasks []TaskRow) Route {
	waypoints := make([]Waypoint, 0, len(tasks)+2)
	if start != nil {
		waypoints = append(waypoints, Waypoint{
			Kind:  WaypointCourier,
			Label: "текущая позиция",
			Lat:   start.Lat,
			Lon:   start.Lon,
		})
	}
	waypoints = append(waypoints, Waypoint{
		Kind:  WaypointWarehouse,
		Label: warehouse.Name,
		Lat:   warehouse.Lat,
		Lon:   warehouse.Lon,
	})

	remaining := make([]TaskRow, len(tasks))
	copy(remaining, tasks)
	lat, lon := warehouse.Lat, warehouse.Lon
	for len(remaining) > 0 {
		best := 0
		bestDist := haversine(lat, lon, remaining[0].Dropoff.Lat, remaining[0].Dropoff.Lon)
		for i := 1; i < len(remaining); i++ {
			d := haversine(lat, lon, remaining[i].Dropoff.Lat, remaining[i].Dropoff.Lon)
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		next := remaining[best]
		waypoints = append(waypoints, Waypoint{
			Kind:   WaypointDropoff,
			Label:  next.Dropoff.Label,
			Lat:    next.Dropoff.Lat,
			Lon:    next.Dropoff.Lon,
			TaskID: next.ID,
		})
		lat, lon = next.Dropoff.Lat, next.Dropoff.Lon
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return Route{CourierID: courierID, Waypoints: waypoints}
}

const earthRadiusKm = 6371.0

// haversine returns the great-circle distance between two points in
// kilometres.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// sortByName orders couriers by name using Russian collation so the
// dashboard list follows Cyrillic alphabet order.
func sortByName(couriers []Courier) {
	collator := collate.New(language.Russian)
	sort.SliceStable(couriers, func(i, j int) bool {
		return collator.CompareString(couriers[i].Name, couriers[j].Name) < 0
	})
}
