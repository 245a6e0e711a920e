package appointment

import (
	"strings"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusInService Status = "in_service"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var Statuses = []Status{StatusScheduled, StatusInService, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInService, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this status holds its room and physician.
func (s Status) Occupies() bool {
	return s != StatusCancelled
}

// statusAliases maps every accepted spelling, including labels written by
// older front-desk releases, to its canonical status.
var statusAliases = map[string]Status{
	"scheduled":      StatusScheduled,
	"agendado":       StatusScheduled,
	"in_service":     StatusInService,
	"in service":     StatusInService,
	"in-service":     StatusInService,
	"em atendimento": StatusInService,
	"completed":      StatusCompleted,
	"concluido":      StatusCompleted,
	"concluído":      StatusCompleted,
	"cancelled":      StatusCancelled,
	"canceled":       StatusCancelled,
	"cancelado":      StatusCancelled,
}

// Labels returns every stored spelling that resolves to s by exact match,
// lowercased. Scheduled also covers the empty label.
func (s Status) Labels() []string {
	labels := []string{}
	if s == StatusScheduled {
		labels = append(labels, "")
	}
	for _, alias := range aliasesBySpecificity {
		if statusAliases[alias] == s {
			labels = append(labels, alias)
		}
	}
	return labels
}

// aliasesBySpecificity is statusAliases ordered longest key first, so that
// containment matching is deterministic.
var aliasesBySpecificity = []string{
	"em atendimento",
	"in_service",
	"in service",
	"in-service",
	"concluído",
	"scheduled",
	"completed",
	"cancelled",
	"concluido",
	"cancelado",
	"canceled",
	"agendado",
}

// ParseStatus maps a raw status label to a known Status. Empty input means
// scheduled. Labels that are not in the alias table but contain exactly a
// known alias resolve to it; anything else is rejected.
func ParseStatus(raw string) (Status, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return StatusScheduled, nil
	}
	if s, ok := statusAliases[text]; ok {
		return s, nil
	}
	for _, alias := range aliasesBySpecificity {
		if strings.Contains(text, alias) {
			return statusAliases[alias], nil
		}
	}
	return "", validationErrorf("unknown status %q", raw)
}
