package engine

import (
	"errors"
	"fmt"
)

var ErrEmptyOrder = errors.New("draft order is empty")

// ValidateOrder checks a draft order handed over by the standings side before
// it is used to build a State. NewState panics on the same conditions.
func ValidateOrder(order []Participant) error {
	if len(order) == 0 {
		return ErrEmptyOrder
	}
	seen := make(map[string]bool, len(order))
	for i, p := range order {
		if p.UserID == "" {
			return fmt.Errorf("draft order position %d has no user id", i+1)
		}
		if seen[p.UserID] {
			return fmt.Errorf("user %s appears twice in draft order", p.UserID)
		}
		seen[p.UserID] = true
	}
	return nil
}

func NewState(order []Participant, rules Rules, picks []Pick, fieldSize int) State {
	if err := ValidateOrder(order); err != nil {
		panic(err)
	}
	if rules.RosterCap <= 0 {
		panic(fmt.Sprintf("roster cap must be positive, got %d", rules.RosterCap))
	}
	if fieldSize < 0 {
		panic(fmt.Sprintf("field size must not be negative, got %d", fieldSize))
	}
	if rules.Format == "" {
		rules.Format = FormatRoundRobin
	}
	return State{
		Order:     order,
		Picks:     picks,
		Rules:     rules,
		FieldSize: fieldSize,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
