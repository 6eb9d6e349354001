package mapper

import (
	"strconv"

	"normflow/models"
)

// ParseFloat parses an exchange-reported decimal string. The second return
// is false for empty or malformed values, which delta pushes use for
// omitted fields.
func ParseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Level converts a price/amount string pair into a book level. Malformed
// pairs are skipped rather than failing the whole message; shape validation
// is the decoder's job.
func Level(price, amount string) (models.BookLevel, bool) {
	p, ok := ParseFloat(price)
	if !ok {
		return models.BookLevel{}, false
	}
	a, ok := ParseFloat(amount)
	if !ok {
		return models.BookLevel{}, false
	}
	return models.BookLevel{Price: p, Amount: a}, true
}

// Levels converts the [price, amount] pair arrays most wire formats carry.
func Levels(raw [][2]string) []models.BookLevel {
	out := make([]models.BookLevel, 0, len(raw))
	for _, pair := range raw {
		if lvl, ok := Level(pair[0], pair[1]); ok {
			out = append(out, lvl)
		}
	}
	return out
}
