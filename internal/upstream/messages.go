package upstream

import "encoding/json"

// EntityState is the controller's representation of one entity, shared
// by the REST listing and state_changed events.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// wsMessage is the envelope for every frame on the event stream. The
// controller multiplexes handshake frames, command results and events
// over one connection, discriminated by Type.
type wsMessage struct {
	Type    string         `json:"type"`
	ID      int            `json:"id,omitempty"`
	Success *bool          `json:"success,omitempty"`
	Message string         `json:"message,omitempty"`
	Event   *eventEnvelope `json:"event,omitempty"`
}

// Handshake and stream frame types.
const (
	msgAuthRequired = "auth_required"
	msgAuth         = "auth"
	msgAuthOK       = "auth_ok"
	msgAuthInvalid  = "auth_invalid"
	msgResult       = "result"
	msgEvent        = "event"
)

// authMessage is the credential frame sent in response to auth_required.
type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// subscribeMessage requests state_changed event delivery.
type subscribeMessage struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

// eventEnvelope is the inner payload of an event frame.
type eventEnvelope struct {
	EventType string           `json:"event_type"`
	Data      stateChangedData `json:"data"`
}

// stateChangedData carries the entity transition of one state_changed
// event. Old state is kept raw; nothing downstream consumes it yet.
type stateChangedData struct {
	EntityID string          `json:"entity_id"`
	NewState *EntityState    `json:"new_state"`
	OldState json.RawMessage `json:"old_state"`
}

// StateChange is the filtered event delivered to the Link's handler.
type StateChange struct {
	EntityID string
	NewState EntityState
}
