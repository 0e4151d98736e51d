package activity

import (
	"reflect"
	"testing"
	"time"
)

func tick(station, n int) time.Time {
	base := time.Date(2023, 4, 3, 8, 0, 0, 0, time.UTC)
	_ = station
	return base.Add(time.Duration(n) * TickResolution)
}

func rec(station, n int, stands, bikes *int, status int) Record {
	return Record{
		StationID:       station,
		Timestamp:       tick(station, n),
		AvailableStands: stands,
		AvailableBikes:  bikes,
		Status:          status,
	}
}

func TestComputeFeatures_Transactions(t *testing.T) {
	records := []Record{
		rec(1, 0, Int(10), Int(10), StatusOpen),
		rec(1, 1, Int(13), Int(7), StatusOpen),  // 3 bikes taken
		rec(1, 2, Int(11), Int(9), StatusOpen),  // 2 bikes returned
		rec(1, 3, Int(11), Int(9), StatusOpen),  // nothing
	}

	got := ComputeFeatures(records)

	wantOut := []int{0, 3, 0, 0}
	wantIn := []int{0, 0, 2, 0}
	wantAll := []int{0, 3, 2, 0}

	for i := range got {
		if got[i].TransactionsOut != wantOut[i] {
			t.Errorf("record %d: TransactionsOut = %d, want %d", i, got[i].TransactionsOut, wantOut[i])
		}
		if got[i].TransactionsIn != wantIn[i] {
			t.Errorf("record %d: TransactionsIn = %d, want %d", i, got[i].TransactionsIn, wantIn[i])
		}
		if got[i].TransactionsAll != wantAll[i] {
			t.Errorf("record %d: TransactionsAll = %d, want %d", i, got[i].TransactionsAll, wantAll[i])
		}
	}
}

func TestComputeFeatures_TransactionsNeverNegative(t *testing.T) {
	records := []Record{
		rec(1, 0, Int(15), Int(5), StatusOpen),
		rec(1, 1, Int(10), Int(10), StatusOpen), // stands fell, bikes rose
		rec(1, 2, Int(12), Int(8), StatusOpen),  // stands rose, bikes fell
	}

	for i, r := range ComputeFeatures(records) {
		if r.TransactionsOut < 0 || r.TransactionsIn < 0 || r.TransactionsAll < 0 {
			t.Errorf("record %d: negative transaction count: out=%d in=%d all=%d",
				i, r.TransactionsOut, r.TransactionsIn, r.TransactionsAll)
		}
	}
}

func TestComputeFeatures_RunCounter(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    []int
	}{
		{
			name: "grows while quiet then resets on checkout",
			records: []Record{
				rec(1, 0, Int(10), Int(10), StatusOpen),
				rec(1, 1, Int(10), Int(10), StatusOpen),
				rec(1, 2, Int(10), Int(10), StatusOpen),
				rec(1, 3, Int(12), Int(8), StatusOpen), // checkout
				rec(1, 4, Int(12), Int(8), StatusOpen),
			},
			want: []int{1, 2, 3, 0, 1},
		},
		{
			name: "closed station resets",
			records: []Record{
				rec(1, 0, Int(10), Int(10), StatusOpen),
				rec(1, 1, Int(10), Int(10), StatusClosed),
				rec(1, 2, Int(10), Int(10), StatusOpen),
			},
			want: []int{1, 0, 1},
		},
		{
			name: "low stands reset",
			records: []Record{
				rec(1, 0, Int(10), Int(10), StatusOpen),
				rec(1, 1, Int(2), Int(18), StatusOpen), // at the floor
				rec(1, 2, Int(3), Int(17), StatusOpen), // checkout (stands rose)
				rec(1, 3, Int(3), Int(17), StatusOpen),
			},
			want: []int{1, 0, 0, 1},
		},
		{
			name: "missing stands reset",
			records: []Record{
				rec(1, 0, Int(10), Int(10), StatusOpen),
				rec(1, 1, nil, Int(10), StatusOpen),
				rec(1, 2, Int(10), Int(10), StatusOpen),
			},
			want: []int{1, 0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFeatures(tt.records)
			runs := make([]int, len(got))
			for i, r := range got {
				runs[i] = r.ConsecutiveNoTransactionsOut
			}
			if !reflect.DeepEqual(runs, tt.want) {
				t.Errorf("runs = %v, want %v", runs, tt.want)
			}
		})
	}
}

func TestComputeFeatures_StationsAreIndependent(t *testing.T) {
	a := []Record{
		rec(1, 0, Int(10), Int(10), StatusOpen),
		rec(1, 1, Int(10), Int(10), StatusOpen),
		rec(1, 2, Int(14), Int(6), StatusOpen),
	}
	b := []Record{
		rec(2, 0, Int(8), Int(12), StatusOpen),
		rec(2, 1, Int(8), Int(12), StatusOpen),
		rec(2, 2, Int(8), Int(12), StatusOpen),
	}

	// Interleave the two stations, then compare per-station output against
	// processing each alone.
	mixed := []Record{a[0], b[0], a[1], b[1], a[2], b[2]}
	got := ComputeFeatures(mixed)

	wantA := ComputeFeatures(a)
	wantB := ComputeFeatures(b)

	gotA := FilterStation(got, 1)
	gotB := FilterStation(got, 2)

	if !reflect.DeepEqual(gotA, wantA) {
		t.Errorf("station 1 features differ when interleaved:\ngot  %+v\nwant %+v", gotA, wantA)
	}
	if !reflect.DeepEqual(gotB, wantB) {
		t.Errorf("station 2 features differ when interleaved:\ngot  %+v\nwant %+v", gotB, wantB)
	}
}

func TestComputeFeatures_MissingReadingYieldsZeroDelta(t *testing.T) {
	records := []Record{
		rec(1, 0, Int(10), Int(10), StatusOpen),
		rec(1, 1, Int(12), nil, StatusOpen),
		rec(1, 2, Int(15), Int(5), StatusOpen),
	}

	got := ComputeFeatures(records)

	if got[1].TransactionsIn != 0 || got[1].TransactionsAll != 0 {
		t.Errorf("record with missing bikes: in=%d all=%d, want 0, 0",
			got[1].TransactionsIn, got[1].TransactionsAll)
	}
	// The tick after the gap also has no bikes delta: prev is unknown.
	if got[2].TransactionsIn != 0 || got[2].TransactionsAll != 0 {
		t.Errorf("record after missing bikes: in=%d all=%d, want 0, 0",
			got[2].TransactionsIn, got[2].TransactionsAll)
	}
	// Stands were present throughout, so checkouts still register.
	if got[2].TransactionsOut != 3 {
		t.Errorf("TransactionsOut = %d, want 3", got[2].TransactionsOut)
	}
}

func TestComputeFeatures_DoesNotModifyInput(t *testing.T) {
	records := []Record{
		rec(1, 0, Int(10), Int(10), StatusOpen),
		rec(1, 1, Int(12), Int(8), StatusOpen),
	}

	_ = ComputeFeatures(records)

	if records[1].TransactionsOut != 0 || records[1].ConsecutiveNoTransactionsOut != 0 {
		t.Error("ComputeFeatures modified its input slice")
	}
}

func TestDedupe(t *testing.T) {
	records := []Record{
		rec(1, 0, Int(10), Int(10), StatusOpen),
		rec(1, 0, Int(9), Int(11), StatusOpen), // duplicate key, later value
		rec(1, 1, Int(10), Int(10), StatusOpen),
	}

	got := Dedupe(records)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// The first occurrence wins.
	if *got[0].AvailableStands != 10 {
		t.Errorf("kept stands = %d, want 10", *got[0].AvailableStands)
	}
}

func TestSortRecords(t *testing.T) {
	records := []Record{
		rec(2, 0, Int(1), Int(1), StatusOpen),
		rec(1, 1, Int(1), Int(1), StatusOpen),
		rec(1, 0, Int(1), Int(1), StatusOpen),
	}

	SortRecords(records)

	if records[0].StationID != 1 || !records[0].Timestamp.Equal(tick(1, 0)) {
		t.Errorf("first record = station %d at %v", records[0].StationID, records[0].Timestamp)
	}
	if records[2].StationID != 2 {
		t.Errorf("last record station = %d, want 2", records[2].StationID)
	}
}
