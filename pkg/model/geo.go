package model

const GeoPointType = "Point"

// GeoPoint is a GeoJSON point. Coordinates are [lng, lat], the order MongoDB
// 2dsphere indexes expect.
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"len=2"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
}

func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: GeoPointType, Coordinates: []float64{lng, lat}}
}

func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) != 2 {
		return 0
	}
	return p.Coordinates[1]
}

func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) != 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Coordinates is a plain lat/lng pair as sent by clients on connect.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
