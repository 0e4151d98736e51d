package activity

// lowStandsThreshold is the inventory floor for the inactivity counter:
// at 2 or fewer available stands a quiet station proves nothing (bikes or
// docks may simply be out of service), so the run is not allowed to grow.
const lowStandsThreshold = 2

// stationState carries the per-station accumulator for ComputeFeatures.
// State is keyed by station ID so interleaved or concatenated histories
// produce the same per-station result as processing each station alone.
type stationState struct {
	prevStands *int
	prevBikes  *int
	run        int
}

// ComputeFeatures derives the transaction counters and the inactivity
// run-length counter for every record and returns the enriched slice.
//
// Records must be in timestamp order within each station. The input slice
// is not modified.
//
// Derived columns:
//   - transactions_out: max(0, available_stands - previous available_stands).
//     A rise in free stands means bikes were taken.
//   - transactions_in: max(0, available_bikes - previous available_bikes).
//   - transactions_all: |available_bikes - previous available_bikes|, not
//     floored.
//   - consecutive_no_transactions_out: how many consecutive ticks the station
//     has been open, stocked, and monitored without a single checkout. The
//     counter resets to 0 whenever transactions_out >= 1, status == 0,
//     available_stands <= 2, or available_stands is missing; otherwise it is
//     the previous record's value plus one.
//
// The first record of a station has a synthetic zero delta. A missing
// reading never contributes a delta: the previous value becomes unknown and
// the next present tick also yields zero.
func ComputeFeatures(records []Record) []Record {
	out := make([]Record, len(records))
	states := make(map[int]*stationState)

	for i, r := range records {
		st := states[r.StationID]
		if st == nil {
			st = &stationState{}
			states[r.StationID] = st
		}

		r.TransactionsOut = positiveDelta(r.AvailableStands, st.prevStands)
		r.TransactionsIn = positiveDelta(r.AvailableBikes, st.prevBikes)
		r.TransactionsAll = absDelta(r.AvailableBikes, st.prevBikes)

		if resetsRun(r) {
			st.run = 0
		} else {
			st.run++
		}
		r.ConsecutiveNoTransactionsOut = st.run

		st.prevStands = r.AvailableStands
		st.prevBikes = r.AvailableBikes
		out[i] = r
	}

	return out
}

// resetsRun reports whether a record breaks the no-checkout run. A missing
// stands reading always resets: a gap in monitoring is not inactivity
// evidence.
func resetsRun(r Record) bool {
	if r.AvailableStands == nil {
		return true
	}
	if r.Status == StatusClosed {
		return true
	}
	if *r.AvailableStands <= lowStandsThreshold {
		return true
	}
	return r.TransactionsOut >= 1
}

// positiveDelta computes max(0, cur-prev), treating a missing side as no
// transaction. The first record of a station has prev == nil.
func positiveDelta(cur, prev *int) int {
	if cur == nil || prev == nil {
		return 0
	}
	d := *cur - *prev
	if d < 0 {
		return 0
	}
	return d
}

// absDelta computes |cur-prev| with the same missing-value policy.
func absDelta(cur, prev *int) int {
	if cur == nil || prev == nil {
		return 0
	}
	d := *cur - *prev
	if d < 0 {
		return -d
	}
	return d
}
