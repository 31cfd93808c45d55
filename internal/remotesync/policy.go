package remotesync

import "fmt"

// InsertPolicy decides what happens to an optimistic insert the remote store
// rejected.
type InsertPolicy string

const (
	// KeepLocal retains the record as the offline-authoritative copy.
	KeepLocal InsertPolicy = "keep"
	// Rollback removes the record from local state.
	Rollback InsertPolicy = "rollback"
)

// UpdatePolicy decides what happens after a failed remote update or delete.
type UpdatePolicy string

const (
	// Refetch pulls the remote snapshot and restores the record from it.
	Refetch UpdatePolicy = "refetch"
	// Diverge keeps the local change and logs the divergence.
	Diverge UpdatePolicy = "diverge"
)

// Policy is the fixed failure-handling policy of a Coordinator.
type Policy struct {
	OnInsertFailure InsertPolicy
	OnUpdateFailure UpdatePolicy
}

// DefaultPolicy keeps failed inserts and refetches after failed updates.
var DefaultPolicy = Policy{OnInsertFailure: KeepLocal, OnUpdateFailure: Refetch}

func ParseInsertPolicy(s string) (InsertPolicy, error) {
	switch p := InsertPolicy(s); p {
	case KeepLocal, Rollback:
		return p, nil
	case "":
		return DefaultPolicy.OnInsertFailure, nil
	default:
		return "", fmt.Errorf("unknown insert failure policy %q", s)
	}
}

func ParseUpdatePolicy(s string) (UpdatePolicy, error) {
	switch p := UpdatePolicy(s); p {
	case Refetch, Diverge:
		return p, nil
	case "":
		return DefaultPolicy.OnUpdateFailure, nil
	default:
		return "", fmt.Errorf("unknown update failure policy %q", s)
	}
}
