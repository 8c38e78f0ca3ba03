package assembler

import (
	"fmt"

	"github.com/nevindra/recall"
)

// renderRelationship implements §4.4.1's formatting table: past-tense
// predicates are rewritten so the downstream generator never mistakes a
// completed fact for a current one.
func renderRelationship(r recall.Relationship) string {
	switch r.Predicate {
	case recall.PredicateBrokeUpWith:
		return fmt.Sprintf("%s broke up with %s (no longer together)", r.Subject, r.Object)
	case recall.PredicateDivorcedFrom:
		return fmt.Sprintf("%s divorced %s (no longer married)", r.Subject, r.Object)
	case recall.PredicateQuit:
		return fmt.Sprintf("%s quit %s (no longer employed there)", r.Subject, r.Object)
	case recall.PredicateLeft:
		return fmt.Sprintf("%s left %s (no longer there)", r.Subject, r.Object)
	case recall.PredicateMovedFrom:
		return fmt.Sprintf("%s moved from %s (no longer there)", r.Subject, r.Object)
	}

	if r.Status == recall.StatusCompleted {
		return fmt.Sprintf("%s %s %s (completed)", r.Subject, string(r.Predicate), r.Object)
	}
	return fmt.Sprintf("%s %s %s", r.Subject, string(r.Predicate), r.Object)
}
