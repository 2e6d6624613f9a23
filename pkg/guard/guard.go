// Package guard decides whether a triggering contact may enter a journey,
// given the contact's execution history and the journey's entry settings.
package guard

import (
	"time"

	"github.com/campaignkit/journey/pkg/models"
)

// Denial reasons carried on EntryDenied events and surfaced by the API.
const (
	ReasonAllowed         = ""
	ReasonAlreadyRunning  = "execution_already_running"
	ReasonAlreadyEntered  = "already_entered"
	ReasonCooldownActive  = "cooldown_active"
	ReasonFrequencyCapped = "frequency_cap_reached"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Evaluate applies the journey's re-entry rule and then its frequency cap to
// the contact's prior executions of that journey. It is a pure function of
// its inputs so a redelivered trigger event re-evaluates to the same
// decision. The first failing rule determines the denial reason.
func Evaluate(history []*models.JourneyExecution, settings models.JourneySettings, now time.Time) Decision {
	if decision := evaluateReEntry(history, settings.ReEntry, now); !decision.Allowed {
		return decision
	}

	if settings.FrequencyCap != nil {
		if decision := evaluateFrequencyCap(history, settings.FrequencyCap, now); !decision.Allowed {
			return decision
		}
	}

	return allow()
}

func evaluateReEntry(history []*models.JourneyExecution, rule models.ReEntryRule, now time.Time) Decision {
	if rule.Type == models.ReEntryAlways {
		return allow()
	}

	// A contact holds at most one live execution per journey unless the
	// rule is "always".
	for _, execution := range history {
		if !execution.Status.IsTerminal() {
			return deny(ReasonAlreadyRunning)
		}
	}

	switch rule.Type {
	case models.ReEntryOnce:
		if len(history) > 0 {
			return deny(ReasonAlreadyEntered)
		}

		return allow()
	case models.ReEntryCooldown:
		lastTerminalAt, found := latestTerminalAt(history)
		if !found {
			return allow()
		}

		// Boundary equality admits.
		if now.Sub(lastTerminalAt) >= rule.Cooldown() {
			return allow()
		}

		return deny(ReasonCooldownActive)
	default:
		return allow()
	}
}

func evaluateFrequencyCap(history []*models.JourneyExecution, frequencyCap *models.FrequencyCap, now time.Time) Decision {
	windowStart := now.Add(-frequencyCap.Window())

	count := 0

	for _, execution := range history {
		if !execution.EnteredAt.Before(windowStart) && !execution.EnteredAt.After(now) {
			count++
		}
	}

	if count >= frequencyCap.MaxCount {
		return deny(ReasonFrequencyCapped)
	}

	return allow()
}

func latestTerminalAt(history []*models.JourneyExecution) (time.Time, bool) {
	var (
		latest time.Time
		found  bool
	)

	for _, execution := range history {
		terminalAt, ok := execution.TerminalAt()
		if !ok {
			continue
		}

		if !found || terminalAt.After(latest) {
			latest = terminalAt
			found = true
		}
	}

	return latest, found
}
