package quote

import "fmt"

// Inline markers substituted for references that cannot be expanded. The
// three kinds stay distinguishable: a reader (or a test) can always tell
// "denied" from "cycle" from "withheld from AI use".

// CircularMarker replaces a reference that re-enters a node already being
// expanded on the active resolution path. Same wording everywhere a cycle
// can surface.
func CircularMarker(id int64) string {
	return fmt.Sprintf("[circular reference: %d]", id)
}

// BlockedMarker replaces a reference whose target exists but is not licensed
// for AI-facing use.
func BlockedMarker(id int64) string {
	return fmt.Sprintf("[quote:%d withheld: not licensed for AI use]", id)
}

// CrossRefMarker replaces a reference whose target is rendered independently
// elsewhere in the same export document.
func CrossRefMarker(id int64) string {
	return fmt.Sprintf("(see entry #%d elsewhere in this export)", id)
}

// InaccessibleMarker replaces a reference whose target is missing or denied.
// Wording differs per render mode: machine output keeps the ID, human output
// stays prose-like.
func InaccessibleMarker(id int64, mode RenderMode) string {
	if mode == Human {
		return "(quoted entry unavailable)"
	}
	return fmt.Sprintf("[quote:%d unavailable]", id)
}
