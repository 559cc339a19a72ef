package service

import (
	"github.com/bahati/fleet-guardian/internal/core/domain"
)

// AggregateByDriver folds the cycle's event sequence into one activity window
// per driver. Pure function: no I/O and no dependency on input order.
//
// Exclusion rules:
//   - events without a driver id are dropped entirely — fraud cannot be
//     attributed to an unknown actor;
//   - missing or negative revenue counts as 0, never as an error — one
//     corrupt value must not abort the cycle;
//   - a GPS fix joins Positions only when present and finite; a fixless
//     event still counts toward EventCount and TotalRevenue.
func AggregateByDriver(events []domain.TransactionEvent) map[string]*domain.DriverActivityWindow {
	windows := make(map[string]*domain.DriverActivityWindow)

	for _, ev := range events {
		if ev.DriverID == "" {
			continue
		}

		w, ok := windows[ev.DriverID]
		if !ok {
			w = &domain.DriverActivityWindow{DriverID: ev.DriverID}
			windows[ev.DriverID] = w
		}

		w.EventCount++
		if ev.Revenue > 0 {
			w.TotalRevenue += ev.Revenue
		}
		if ev.GPS != nil && ev.GPS.Finite() {
			w.Positions = append(w.Positions, *ev.GPS)
		}
	}

	return windows
}
