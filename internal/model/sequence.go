package model

// SequencerState is the persisted daily counter behind patient identifiers.
// Date uses DateLayout.
type SequencerState struct {
	Date   string `json:"date"`
	Series int    `json:"series"`
}
