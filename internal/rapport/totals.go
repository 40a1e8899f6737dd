package rapport

import (
	"strconv"
	"strings"

	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/internal/photo"
)

// calculateHours returns the span between two HH:MM stamps in fractional
// hours. Unparseable or inverted spans count as zero.
func calculateHours(debut, fin string) float64 {
	start, okStart := parseClock(debut)
	end, okEnd := parseClock(fin)
	if !okStart || !okEnd {
		return 0
	}
	if end < start {
		return 0
	}
	return end - start
}

func parseClock(s string) (float64, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return float64(h) + float64(m)/60, true
}

// computeTotals recomputes the denormalized aggregate columns from the
// form rows. Main-d'oeuvre rows with neither a name nor a start time are
// placeholder rows and are skipped.
func computeTotals(r *models.Rapport, groups []photo.Group) {
	var hours float64
	for _, w := range r.MainOeuvre {
		if w.Employe == "" && w.HeureDebut == "" {
			continue
		}
		hours += calculateHours(w.HeureDebut, w.HeureFin)
	}
	r.TotalHeuresMO = hours

	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}
	r.TotalPhotos = total

	r.HasExtras = false
	r.NbExtras = 0
	r.TotalExtras = 0
	for _, o := range r.OrdresTravail {
		if !o.IsExtra {
			continue
		}
		r.HasExtras = true
		r.NbExtras++
		if amount, err := strconv.ParseFloat(o.MontantExtra, 64); err == nil {
			r.TotalExtras += amount
		}
	}
}
