// Package mapper translates Notify delivery statuses into the coarse document
// states understood by Sirius.
package mapper

import (
	"errors"
	"fmt"
	"sort"
)

// Outcome is the document status recorded in Sirius.
type Outcome string

const (
	OutcomeRejected Outcome = "rejected"
	OutcomeQueued   Outcome = "queued"
	OutcomePosting  Outcome = "posting"
	OutcomePosted   Outcome = "posted"
)

// ErrUnknownStatus is returned when a Notify status is not present in the table.
var ErrUnknownStatus = errors.New("unknown notify status")

// The Notify documentation lists different statuses for letters and
// precompiled letters; this table is the union of both and needs confirming
// against the current provider contract.
var statuses = map[string]Outcome{
	"failed":              OutcomeRejected,
	"virus-scan-failed":   OutcomeRejected,
	"validation-failed":   OutcomeRejected,
	"pending-virus-check": OutcomeQueued,
	"accepted":            OutcomePosting,
	"received":            OutcomePosted,
	"cancelled":           OutcomeRejected,
	"technical-failure":   OutcomeRejected,
	"permanent-failure":   OutcomeRejected,
	"temporary-failure":   OutcomeRejected,
	"created":             OutcomePosting,
	"sending":             OutcomePosting,
	"delivered":           OutcomePosted,
}

// ToOutcome maps a raw Notify status to its Sirius outcome. Unknown statuses
// are an error and are never defaulted.
func ToOutcome(notifyStatus string) (Outcome, error) {
	outcome, ok := statuses[notifyStatus]
	if !ok {
		return "", fmt.Errorf("%w: Unknown Notify status %q", ErrUnknownStatus, notifyStatus)
	}
	return outcome, nil
}

// KnownStatuses returns every Notify status the mapper understands, sorted.
func KnownStatuses() []string {
	out := make([]string, 0, len(statuses))
	for status := range statuses {
		out = append(out, status)
	}
	sort.Strings(out)
	return out
}
