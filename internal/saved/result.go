package saved

// Status is the outcome of a save or unsave call.
type Status string

const (
	StatusCreated      Status = "created"
	StatusIncremented  Status = "incremented"
	StatusAlreadySaved Status = "already_saved"
	StatusRemoved      Status = "removed"
	StatusNotSaved     Status = "not_saved"
	StatusDataError    Status = "data_error"
)

// Result is returned by every save and unsave operation.
type Result struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Kind       Kind   `json:"kind"`
	Status     Status `json:"status"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
}

var messages = map[Kind]map[Status]string{
	KindFlight: {
		StatusCreated:      "Flight saved successfully",
		StatusIncremented:  "Flight saved successfully",
		StatusAlreadySaved: "User already saved flight",
		StatusRemoved:      "Flight successfully removed from saved",
		StatusNotSaved:     "User does not have this flight saved",
		StatusDataError:    "Saved flight has no stored flight record",
	},
	KindActivity: {
		StatusCreated:      "Itinerary saved successfully",
		StatusIncremented:  "Itinerary saved successfully",
		StatusAlreadySaved: "User already saved itinerary",
		StatusRemoved:      "Itinerary removed from saved",
		StatusNotSaved:     "User does not have this itinerary saved",
		StatusDataError:    "Saved itinerary has no stored activity record",
	},
}

// NewResult builds a Result with the message and success flag for status.
func NewResult(kind Kind, userID, resourceID string, status Status) Result {
	return Result{
		UserID:     userID,
		ResourceID: resourceID,
		Kind:       kind,
		Status:     status,
		Success:    status == StatusCreated || status == StatusIncremented || status == StatusRemoved,
		Message:    messages[kind][status],
	}
}
