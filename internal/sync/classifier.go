package sync

// Decision says whether an incoming record is a first sighting or a change to
// a record we already track.
type Decision string

const (
	DecisionNew      Decision = "new"
	DecisionModified Decision = "modified"
)

// Classify implements the change decision table. The legacy system stamps
// modified_at on every save including the initial one, so equality between the
// two timestamps is the only reliable "freshly created" signal available.
//
//	createdAt == modifiedAt → NEW, regardless of resolver outcome
//	differ, target found    → MODIFIED, update in place
//	differ, no target       → NEW, treat as first sighting
//
// Reversing the found/not-found branches causes duplicate ledger rows.
func Classify(createdAt, modifiedAt string, targetFound bool) Decision {
	if createdAt == modifiedAt {
		return DecisionNew
	}
	if targetFound {
		return DecisionModified
	}
	return DecisionNew
}
