package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Prize is the reward handed to the winner at a leaderboard position.
type Prize struct {
	Position int    `json:"position"`
	Prize    string `json:"prize"`
}

// PrizeTable maps leaderboard positions to prizes and is persisted as JSONB.
// Entries are kept ordered by position.
type PrizeTable []Prize

// NewPrizeTable builds an ordered table from a position→prize map.
func NewPrizeTable(byPosition map[int]string) PrizeTable {
	out := make(PrizeTable, 0, len(byPosition))
	for pos, prize := range byPosition {
		out = append(out, Prize{Position: pos, Prize: prize})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// PrizeFor returns the prize configured for position.
func (p PrizeTable) PrizeFor(position int) (string, bool) {
	for _, entry := range p {
		if entry.Position == position {
			return entry.Prize, true
		}
	}
	return "", false
}

// Value serializes the table to JSON text.
func (p PrizeTable) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB into the prize table.
func (p *PrizeTable) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("prize table: unsupported scan type %T", value)
	}
	var decoded PrizeTable
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	sort.Slice(decoded, func(i, j int) bool { return decoded[i].Position < decoded[j].Position })
	*p = decoded
	return nil
}
