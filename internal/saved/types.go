package saved

import "time"

// Kind identifies which resource table a saved row points at.
type Kind string

const (
	KindFlight   Kind = "flight"
	KindActivity Kind = "activity"
)

// Bound is the leg direction a segment belongs to within a flight.
type Bound string

const (
	BoundOutbound Bound = "outbound"
	BoundInbound  Bound = "inbound"
)

// Segment is a single flown leg. Once stored it is never overwritten;
// RefCount is the number of flights currently referencing it.
type Segment struct {
	ID               string `json:"segment_id" validate:"required"`
	AirlineCode      string `json:"airline_code" validate:"required"`
	FlightCode       string `json:"flight_code" validate:"required"`
	DepartureAirport string `json:"departure_airport" validate:"required"`
	DepartureCity    string `json:"departure_city" validate:"required"`
	ArrivalAirport   string `json:"arrival_airport,omitempty"`
	ArrivalCity      string `json:"arrival_city,omitempty"`
	DepartureDate    string `json:"departure_date" validate:"required"`
	DepartureTime    string `json:"departure_time" validate:"required"`
	ArrivalDate      string `json:"arrival_date" validate:"required"`
	ArrivalTime      string `json:"arrival_time" validate:"required"`
	Duration         string `json:"duration" validate:"required"`
	RefCount         int    `json:"ref_count,omitempty"`
}

// Flight is a priced itinerary. RefCount is the number of users who saved it.
type Flight struct {
	ID                string `json:"flight_id" validate:"required"`
	TotalSegmentCount int    `json:"total_segment_count" validate:"gte=1"`
	PricePerPerson    string `json:"price_per_person" validate:"required,numeric"`
	TotalPrice        string `json:"total_price,omitempty" validate:"omitempty,numeric"`
	RefCount          int    `json:"ref_count,omitempty"`
}

// SegmentRef places a segment inside a flight.
type SegmentRef struct {
	SegmentID string `json:"segment_id" validate:"required"`
	Bound     Bound  `json:"bound" validate:"oneof=outbound inbound"`
	Position  int    `json:"position" validate:"gte=1"`
}

// FlightView is a flight with its segments split by bound, each list
// ordered by position. It is both the listing shape and the save request body.
type FlightView struct {
	Flight
	Outbound []Segment `json:"outbound"`
	Inbound  []Segment `json:"inbound"`
}

// Activity is a bookable itinerary item. RefCount is the number of users who saved it.
type Activity struct {
	ID            string   `json:"activity_id" validate:"required"`
	City          string   `json:"city" validate:"required"`
	Name          string   `json:"activity_name" validate:"required"`
	Details       string   `json:"activity_details"`
	PriceAmount   string   `json:"price_amount" validate:"required,numeric"`
	PriceCurrency string   `json:"price_currency" validate:"required"`
	Pictures      []string `json:"pictures" validate:"dive,required"`
	RefCount      int      `json:"ref_count,omitempty"`
}

// SavedResource records that a user currently references a resource.
type SavedResource struct {
	UserID     string    `json:"user_id"`
	Kind       Kind      `json:"kind"`
	ResourceID string    `json:"resource_id"`
	SavedAt    time.Time `json:"saved_at"`
}

// User is a registered owner of saved resources.
type User struct {
	ID        string    `json:"user_id" validate:"required,max=128"`
	Details   string    `json:"user_details"`
	CreatedAt time.Time `json:"created_at"`
}
