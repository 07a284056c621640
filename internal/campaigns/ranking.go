package campaigns

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/types"
)

// Standing is one ranked participant. Prize is empty past the winner slots.
type Standing struct {
	UserID uuid.UUID
	Rank   int
	Qty    int
	Prize  string
}

// Rank orders totals by quantity descending, breaking ties by ascending user
// id. Totals below minSales are dropped. Every position up to winnerCount
// that is occupied must have a prize.
func Rank(totals []SalesTotal, minSales, winnerCount int, prizes types.PrizeTable) ([]Standing, error) {
	ranked := make([]SalesTotal, 0, len(totals))
	for _, t := range totals {
		if t.Qty <= 0 || t.Qty < minSales {
			continue
		}
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Qty != ranked[j].Qty {
			return ranked[i].Qty > ranked[j].Qty
		}
		return bytes.Compare(ranked[i].UserID[:], ranked[j].UserID[:]) < 0
	})

	out := make([]Standing, len(ranked))
	for i, t := range ranked {
		s := Standing{UserID: t.UserID, Rank: i + 1, Qty: t.Qty}
		if s.Rank <= winnerCount {
			prize, ok := prizes.PrizeFor(s.Rank)
			if !ok {
				return nil, fmt.Errorf("no prize configured for position %d", s.Rank)
			}
			s.Prize = prize
		}
		out[i] = s
	}
	return out, nil
}

// Winners trims standings to the eligible positions.
func Winners(standings []Standing, winnerCount int) []Standing {
	if len(standings) > winnerCount {
		return standings[:winnerCount]
	}
	return standings
}

func find(standings []Standing, userID uuid.UUID) (Standing, bool) {
	for _, s := range standings {
		if s.UserID == userID {
			return s, true
		}
	}
	return Standing{}, false
}
