package catalog

// seed returns the built-in boundary definitions. Order here is the order
// clients render and the order match results follow.
func seed() []Category {
	return []Category{
		{
			ID:   "affection",
			Name: "Affection",
			Boundaries: []Boundary{
				{ID: "hand-holding", Label: "Holding hands", Category: "affection"},
				{ID: "hugging", Label: "Hugging", Category: "affection"},
				{ID: "kissing", Label: "Kissing", Category: "affection"},
				{ID: "public-affection", Label: "Affection in public", Category: "affection"},
				{ID: "pet-names", Label: "Using pet names", Category: "affection"},
			},
		},
		{
			ID:   "communication",
			Name: "Communication",
			Boundaries: []Boundary{
				{ID: "daily-checkins", Label: "Daily check-ins", Category: "communication"},
				{ID: "late-night-calls", Label: "Late night calls", Category: "communication"},
				{ID: "discussing-exes", Label: "Discussing past relationships", Category: "communication"},
				{ID: "conflict-timeouts", Label: "Taking timeouts during conflict", Category: "communication"},
			},
		},
		{
			ID:   "time-and-space",
			Name: "Time & Space",
			Boundaries: []Boundary{
				{ID: "unannounced-visits", Label: "Unannounced visits", Category: "time-and-space"},
				{ID: "overnight-stays", Label: "Overnight stays", Category: "time-and-space"},
				{ID: "meeting-friends", Label: "Meeting each other's friends", Category: "time-and-space"},
				{ID: "meeting-family", Label: "Meeting each other's family", Category: "time-and-space"},
				{ID: "solo-weekends", Label: "Solo weekends apart", Category: "time-and-space"},
			},
		},
		{
			ID:   "digital",
			Name: "Digital",
			Boundaries: []Boundary{
				{ID: "shared-location", Label: "Sharing live location", Category: "digital"},
				{ID: "shared-photos", Label: "Posting photos together", Category: "digital"},
				{ID: "relationship-status", Label: "Public relationship status", Category: "digital"},
				{ID: "phone-privacy", Label: "Phones stay private", Category: "digital"},
			},
		},
	}
}
