// Package voicetypes holds the provider-agnostic call placement types. It is
// a leaf package so the call scheduler can depend on them without importing
// the voice provider client (which itself depends on the calls package).
package voicetypes

// PlaceCallRequest carries everything the assistant needs to run a practice call.
type PlaceCallRequest struct {
	PhoneNumber        string
	UserID             string
	Topic              string
	LastSummary        string
	MaxDurationSeconds int
}

// PlaceCallResponse is the provider acknowledgment for a placed call.
type PlaceCallResponse struct {
	CallID string `json:"id"`
	Status string `json:"status"`
}
