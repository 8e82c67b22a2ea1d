package dashboard

// Badge is the display form of a workflow run's state.
type Badge struct {
	Label string
	// Class is one of running, success, failure, cancelled or neutral.
	Class string
}

// StatusBadge maps a run's status and conclusion to a badge. An in-progress
// run reads as Running whatever its conclusion; unknown states fall back to
// the raw status.
func StatusBadge(status string, conclusion *string) Badge {
	if status == "in_progress" {
		return Badge{Label: "Running", Class: "running"}
	}
	if conclusion != nil {
		switch *conclusion {
		case "success":
			return Badge{Label: "Success", Class: "success"}
		case "failure":
			return Badge{Label: "Failed", Class: "failure"}
		case "cancelled":
			return Badge{Label: "Cancelled", Class: "cancelled"}
		}
	}
	return Badge{Label: status, Class: "neutral"}
}
