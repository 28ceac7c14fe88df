package model

// Section is one block of rules content a member must scroll past.
// Ordinals are 1-based and contiguous; they are assigned at configuration
// time and never change for the life of a process.
type Section struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"`
	Title   string `json:"title,omitempty"`
	Body    string `json:"body,omitempty"`
}

// DefaultSections returns the three auction rule sections.
func DefaultSections() []Section {
	return []Section{
		{
			ID:      "section-posting",
			Ordinal: 1,
			Title:   "Posting an Auction",
			Body: "Use the member auction template for every post. Include the edition size " +
				"(LE, OE or LR), list every flaw, and state starting bid, shipping and end time in PST.",
		},
		{
			ID:      "section-bidding",
			Ordinal: 2,
			Title:   "Bidding",
			Body: "Bids are binding and must be in whole dollar increments. Bid in the comments " +
				"of the auction post; edited or deleted bids are void.",
		},
		{
			ID:      "section-general",
			Ordinal: 3,
			Title:   "General Rules",
			Body: "Pay within 24 hours of the auction ending using the payment types listed. " +
				"Sellers ship within five business days. Violations may result in removal from the group.",
		},
	}
}
