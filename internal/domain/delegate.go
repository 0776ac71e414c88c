package domain

// Delegate is an AI persona attending a room on behalf of Owner.
type Delegate struct {
	Name  string `json:"name"`
	Style string `json:"style"`
	Owner UserID `json:"userId"`
}
