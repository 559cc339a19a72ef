package domain

import (
	"math"
	"time"
)

// Coordinates represents a geographic point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Finite reports whether both coordinates are real numbers. Devices without a
// fix sometimes report NaN or infinities after a bad parse; those points must
// never reach the dispersion analysis.
func (c Coordinates) Finite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lng) && !math.IsInf(c.Lng, 0)
}

// TransactionEvent is one observed sale reported by a point-of-sale device.
// Events are immutable once fetched; the pipeline owns them for one cycle.
type TransactionEvent struct {
	ID         string
	DriverID   string // empty when the device did not attribute a driver
	LocationID string
	Revenue    float64
	Timestamp  time.Time
	GPS        *Coordinates // nil when the device had no fix
}

// DriverActivityWindow aggregates one driver's activity within a single
// patrol cycle. Built fresh each cycle and discarded after alerts are emitted.
//
// Invariant: EventCount == len(Positions) + number of events without a GPS
// fix. Only Positions feeds the dispersion analysis; fixless events are
// excluded there, never defaulted to the origin.
type DriverActivityWindow struct {
	DriverID     string
	EventCount   int
	TotalRevenue float64
	Positions    []Coordinates
}
