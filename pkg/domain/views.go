package domain

// Sentinels substituted when a join target is missing.
const (
	UnknownLabel       = "Unknown"
	UnknownLabelES     = "Desconocido"
	UnknownDisplayID   = "?"
	NoBikeModel        = "Sin Bicicletas"
	StandardBikeType   = "Standard"
	NoBikeType         = "N/A"
	NoBikeTransmission = "-"
)

// DashboardJob is a service joined to its bike and client.
type DashboardJob struct {
	ServiceID   int64         `json:"service_id"`
	Status      ServiceStatus `json:"status"`
	ServiceType ServiceType   `json:"service_type"`
	DateIn      string        `json:"date_in"`
	BikeBrand   string        `json:"bike_brand"`
	BikeModel   string        `json:"bike_model"`
	ClientName  string        `json:"client_name"`
	ClientTier  UsageTier     `json:"client_tier"`
	DateOut     string        `json:"date_out,omitempty"`
	TotalPrice  float64       `json:"total_price"`
}

// FleetItem is one row of the fleet-wide status view. BikeID zero marks a
// client without bikes.
type FleetItem struct {
	BikeID           int64   `json:"bike_id"`
	ClientName       string  `json:"client_name"`
	ClientID         int64   `json:"client_id"`
	ClientDisplayID  string  `json:"client_display_id"`
	ClientTier       string  `json:"client_tier"`
	BikeModel        string  `json:"bike_model"`
	BikeType         string  `json:"bike_type"`
	Transmission     string  `json:"transmission"`
	ServiceCount     int     `json:"service_count"`
	NextDueDate      *string `json:"next_due_date"`
	NextDueComponent *string `json:"next_due_component"`
}

// RetentionAlert is a reminder joined to its bike and owner with the number
// of days left until it is due.
type RetentionAlert struct {
	ID            float64 `json:"id"`
	ClientName    string  `json:"clientName"`
	ClientPhone   string  `json:"clientPhone"`
	BikeModel     string  `json:"bikeModel"`
	Component     string  `json:"component"`
	DueDate       string  `json:"dueDate"`
	DaysRemaining int     `json:"daysRemaining"`
}
