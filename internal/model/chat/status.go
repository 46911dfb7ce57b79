package chat

// Status summarises the automation facade for the status endpoint.
type Status struct {
	SessionActive bool   `json:"sessionActive"`
	Location      string `json:"location,omitempty"`
	Turns         int    `json:"turns"`
}
