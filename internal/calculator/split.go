package calculator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parisedai/budgetai/internal/money"
)

// Validation messages shown to the user as-is.
const (
	MsgNoItems   = "Please add at least one item with an amount"
	MsgNoPeople  = "Please add at least one person"
	MsgTooLarge  = "Total amount is too large"
	defaultLabel = "Item"
)

// ValidationError reports malformed or empty split input.
// Message is safe to show to the caller.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ItemInput is an expense item as received from the client.
type ItemInput struct {
	Name   string          `json:"name,omitempty"`
	Amount money.RawAmount `json:"amount"`
}

// Item is a validated expense item.
type Item struct {
	Label  string
	Amount money.Amount
}

// Normalized is the canonical form of a split request.
type Normalized struct {
	Items        []Item
	Total        money.Amount
	Participants []string
}

// Normalize validates raw items and people and converts them to minor units.
// Items are checked before people. Participants are trimmed, blanks dropped,
// and duplicates collapsed case-sensitively keeping first-seen order.
func Normalize(items []ItemInput, people []string) (Normalized, error) {
	var n Normalized

	positive := false
	for i, in := range items {
		amount, err := money.Parse(string(in.Amount))
		if err != nil {
			return Normalized{}, invalid("invalid_amount", "Invalid amount for item %d: %q", i+1, string(in.Amount))
		}
		label := strings.TrimSpace(in.Name)
		if label == "" {
			label = defaultLabel
		}
		n.Items = append(n.Items, Item{Label: label, Amount: amount})

		total, ok := n.Total.Add(amount)
		if !ok {
			return Normalized{}, invalid("too_large", MsgTooLarge)
		}
		n.Total = total
		if amount > 0 {
			positive = true
		}
	}
	if !positive {
		return Normalized{}, invalid("no_items", MsgNoItems)
	}

	seen := make(map[string]bool, len(people))
	for _, p := range people {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		n.Participants = append(n.Participants, p)
	}
	if len(n.Participants) == 0 {
		return Normalized{}, invalid("no_people", MsgNoPeople)
	}

	return n, nil
}

// Share is one participant's portion of a total.
type Share struct {
	Participant string
	Amount      money.Amount
}

// Allocation is the per-participant result of Allocate, in participant order.
type Allocation []Share

// Total returns the sum of all shares.
func (a Allocation) Total() money.Amount {
	var sum money.Amount
	for _, s := range a {
		sum += s.Amount
	}
	return sum
}

// Allocate divides total evenly among participants. When the total does not
// divide evenly, the first total%n participants each get one extra cent.
//
// participants must be non-empty and deduplicated; Normalize guarantees both.
func Allocate(total money.Amount, participants []string) Allocation {
	n := money.Amount(len(participants))
	if n == 0 {
		panic("calculator: Allocate called with no participants")
	}
	if total < 0 {
		panic(fmt.Sprintf("calculator: Allocate called with negative total %d", total))
	}

	base, remainder := total/n, total%n
	shares := make(Allocation, len(participants))
	for i, p := range participants {
		amount := base
		if money.Amount(i) < remainder {
			amount++
		}
		shares[i] = Share{Participant: p, Amount: amount}
	}

	if got := shares.Total(); got != total {
		panic(fmt.Sprintf("calculator: allocated %d of %d", got, total))
	}
	return shares
}

// PersonAmount is a participant's share formatted for display.
type PersonAmount struct {
	Participant string
	Amount      string
}

// Split is the assembled response. It encodes as a JSON object whose keys
// appear in participant order.
type Split []PersonAmount

// Assemble formats each share as a decimal string with two fractional digits.
func Assemble(a Allocation) Split {
	out := make(Split, len(a))
	for i, s := range a {
		out[i] = PersonAmount{Participant: s.Participant, Amount: s.Amount.String()}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s Split) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Participant)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Amount)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (s *Split) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("split: expected object, got %v", tok)
	}

	var out Split
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("split: expected participant name, got %v", tok)
		}
		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("split: value for %q: %w", key, err)
		}
		out = append(out, PersonAmount{Participant: key, Amount: val})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("split: %w", err)
	}
	*s = out
	return nil
}

// Lookup returns the formatted amount for a participant.
func (s Split) Lookup(participant string) (string, bool) {
	for _, p := range s {
		if p.Participant == participant {
			return p.Amount, true
		}
	}
	return "", false
}

// Result bundles everything a split request produces.
type Result struct {
	Normalized Normalized
	Allocation Allocation
	Split      Split
}

// SplitExpenses runs normalization, allocation and assembly in one step.
func SplitExpenses(items []ItemInput, people []string) (Result, error) {
	n, err := Normalize(items, people)
	if err != nil {
		return Result{}, err
	}
	alloc := Allocate(n.Total, n.Participants)
	return Result{
		Normalized: n,
		Allocation: alloc,
		Split:      Assemble(alloc),
	}, nil
}
