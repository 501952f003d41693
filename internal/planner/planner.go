// Package planner turns a remote listing into an ordered download plan by
// diffing it against the tracking ledger.
package planner

import (
	"context"
	"fmt"
	"time"

	"vodsync/internal/ledger"
	"vodsync/internal/policy"
)

// Item is one remote video under consideration, newest first in listing order.
type Item struct {
	ID        string
	Title     string
	Uploader  string
	Published time.Time
	Duration  time.Duration
}

// Action describes what a sync pass does with one listed item.
type Action string

const (
	// ActionDownload fetches an item never completed before.
	ActionDownload Action = "download"
	// ActionRetry fetches an item left mid-attempt by a crashed or failed run.
	ActionRetry Action = "retry"
	// ActionSkipKnown drops an item that already completed.
	ActionSkipKnown Action = "skip_known"
	// ActionSkipPermanent drops an item that exhausted its retry budget.
	ActionSkipPermanent Action = "skip_permanent"
	// ActionSkipPolicy drops an item violating size or duration limits.
	ActionSkipPolicy Action = "skip_policy"
)

// Fetches reports whether the action queues a download.
func (a Action) Fetches() bool {
	return a == ActionDownload || a == ActionRetry
}

// Decision pairs an item with the planner's verdict.
type Decision struct {
	Item   Item
	Action Action
	Reason string
}

// Plan is the ordered outcome of planning one source for one pass. Decisions
// preserve the listing's newest-first order.
type Plan struct {
	SourceID  string
	Decisions []Decision
}

// Downloads returns only the decisions that queue a fetch, in order.
func (p Plan) Downloads() []Decision {
	out := make([]Decision, 0, len(p.Decisions))
	for _, decision := range p.Decisions {
		if decision.Action.Fetches() {
			out = append(out, decision)
		}
	}
	return out
}

// RecordSource is the ledger view the planner needs.
type RecordSource interface {
	Lookup(ctx context.Context, sourceID, videoID string) (*ledger.Record, error)
}

// Build produces the download plan for one source. Items must already be
// bounded by the listing window (newest first, period cutoff applied).
// The policy's MaxItems caps queued downloads only: items skipped as already
// known do not consume the cap, preserving "last N new items" semantics.
func Build(ctx context.Context, sourceID string, eff policy.Effective, items []Item, records RecordSource) (Plan, error) {
	plan := Plan{SourceID: sourceID}
	queued := 0

	for _, item := range items {
		if eff.MaxItems > 0 && queued >= eff.MaxItems {
			break
		}

		record, err := records.Lookup(ctx, sourceID, item.ID)
		if err != nil {
			return Plan{}, fmt.Errorf("lookup %s/%s: %w", sourceID, item.ID, err)
		}

		decision := decide(item, record, eff)
		if decision.Action.Fetches() {
			queued++
		}
		plan.Decisions = append(plan.Decisions, decision)
	}

	return plan, nil
}

// decide applies the decision table in order: completed, mid-attempt retry,
// exhausted, fresh download, policy limits.
func decide(item Item, record *ledger.Record, eff policy.Effective) Decision {
	if record != nil {
		switch {
		case record.Status == ledger.StatusCompleted:
			return Decision{Item: item, Action: ActionSkipKnown, Reason: "already completed"}
		case record.Status == ledger.StatusDownloading && record.AttemptCount < ledger.MaxAttempts:
			return Decision{Item: item, Action: ActionRetry, Reason: "recovering interrupted attempt"}
		case record.AttemptCount >= ledger.MaxAttempts:
			return Decision{
				Item:   item,
				Action: ActionSkipPermanent,
				Reason: fmt.Sprintf("failed %d times: %s", record.AttemptCount, record.ErrorMessage),
			}
		}
	}

	if eff.MaxDurationSeconds > 0 && item.Duration > 0 {
		if item.Duration > time.Duration(eff.MaxDurationSeconds)*time.Second {
			return Decision{
				Item:   item,
				Action: ActionSkipPolicy,
				Reason: fmt.Sprintf("duration %s exceeds limit %ds", item.Duration, eff.MaxDurationSeconds),
			}
		}
	}

	if record != nil && record.Status == ledger.StatusFailed {
		return Decision{Item: item, Action: ActionRetry, Reason: fmt.Sprintf("retry after %d failed attempts", record.AttemptCount)}
	}
	return Decision{Item: item, Action: ActionDownload, Reason: "new item"}
}
