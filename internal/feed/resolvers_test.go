package feed

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"solafeed/internal/metrics"
)

func TestBlockListResolve(t *testing.T) {
	store := newMemStore()
	store.blocked = []string{"u2", "u3", "u2", "v1", ""}
	got := NewBlockListResolver(store, testLogger).Resolve(context.Background(), "v1")

	if len(got) != 2 {
		t.Fatalf("resolved = %v, want {u2 u3}", got)
	}
	if _, ok := got["v1"]; ok {
		t.Error("viewer must never exclude themselves")
	}
}

func TestBlockListFailsOpen(t *testing.T) {
	store := newMemStore()
	store.blockedErr = errBoom
	before := testutil.ToFloat64(metrics.ResolverFailOpen.WithLabelValues("blocklist"))

	got := NewBlockListResolver(store, testLogger).Resolve(context.Background(), "v1")
	if got == nil || len(got) != 0 {
		t.Errorf("resolved = %v, want empty set", got)
	}
	if after := testutil.ToFloat64(metrics.ResolverFailOpen.WithLabelValues("blocklist")); after != before+1 {
		t.Errorf("fail-open counter = %v, want %v", after, before+1)
	}
}

var tripNow = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func newTripResolver(store *memStore) *TripContextResolver {
	return NewTripContextResolver(store, testLogger)
}

func TestTripContextPrefersActiveTrip(t *testing.T) {
	store := newMemStore()
	store.countries = map[string]string{"TH": "country-th", "VN": "country-vn"}
	store.trips = []Trip{
		{ID: "soon", Status: TripPlanning, Arriving: tripNow.Add(24 * time.Hour),
			Stops: []Stop{{CityID: "hanoi", CountryIso2: "vn"}}},
		{ID: "now", Status: TripActive, Arriving: tripNow.Add(-24 * time.Hour),
			Stops: []Stop{{CityID: "bkk", CountryIso2: "th"}, {CityID: "cnx", CountryIso2: "TH "}}},
	}

	tc := newTripResolver(store).Resolve(context.Background(), "v1")
	if tc == nil {
		t.Fatal("expected a trip context")
	}
	if !tc.HasCity("bkk") || !tc.HasCity("cnx") || tc.HasCity("hanoi") {
		t.Errorf("cities = %v", tc.CityIDs)
	}
	if !tc.HasCountry("country-th") || len(tc.CountryIDs) != 1 {
		t.Errorf("countries = %v", tc.CountryIDs)
	}
}

func TestTripContextPicksNearestUpcoming(t *testing.T) {
	store := newMemStore()
	store.trips = []Trip{
		{ID: "later", Status: TripPlanning, Arriving: tripNow.Add(30 * 24 * time.Hour), Stops: []Stop{{CityID: "later-city"}}},
		{ID: "past", Status: TripCompleted, Arriving: tripNow.Add(-30 * 24 * time.Hour), Stops: []Stop{{CityID: "past-city"}}},
		{ID: "next", Status: TripPlanning, Arriving: tripNow.Add(3 * 24 * time.Hour), Stops: []Stop{{CityID: "next-city"}}},
	}
	tc := newTripResolver(store).Resolve(context.Background(), "v1")
	if tc == nil || !tc.HasCity("next-city") || len(tc.CityIDs) != 1 {
		t.Errorf("trip context = %+v, want next-city only", tc)
	}
}

func TestTripContextUndatedPlannedTrip(t *testing.T) {
	store := newMemStore()
	store.countries = map[string]string{"TH": "country-th"}
	store.trips = []Trip{
		{ID: "undated", Status: TripPlanning, Stops: []Stop{{CityID: "bkk", CountryIso2: "TH"}}},
	}
	tc := newTripResolver(store).Resolve(context.Background(), "v1")
	if tc == nil || !tc.HasCity("bkk") || !tc.HasCountry("country-th") {
		t.Fatalf("trip context = %+v, want bkk / country-th", tc)
	}
}

// 到达日期已过但还没标记为进行中的行程仍然算计划行程，有日期的排在无日期的前面
func TestTripContextPlannedTripOrdering(t *testing.T) {
	store := newMemStore()
	store.trips = []Trip{
		{ID: "undated", Status: TripPlanning, Stops: []Stop{{CityID: "undated-city"}}},
		{ID: "later", Status: TripPlanning, Arriving: tripNow.Add(48 * time.Hour), Stops: []Stop{{CityID: "later-city"}}},
		{ID: "overdue", Status: TripPlanning, Arriving: tripNow.Add(-time.Nanosecond), Stops: []Stop{{CityID: "overdue-city"}}},
	}
	tc := newTripResolver(store).Resolve(context.Background(), "v1")
	if tc == nil || !tc.HasCity("overdue-city") || len(tc.CityIDs) != 1 {
		t.Errorf("trip context = %+v, want overdue-city only", tc)
	}

	store.trips = store.trips[:2]
	tc = newTripResolver(store).Resolve(context.Background(), "v1")
	if tc == nil || !tc.HasCity("later-city") || len(tc.CityIDs) != 1 {
		t.Errorf("trip context = %+v, want later-city only", tc)
	}
}

func TestTripContextNeutralCases(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memStore)
	}{
		{"no trips", func(m *memStore) {}},
		{"lookup error", func(m *memStore) { m.tripsErr = errBoom }},
		{"only completed trips", func(m *memStore) {
			m.trips = []Trip{{Status: TripCompleted, Arriving: tripNow.Add(time.Hour), Stops: []Stop{{CityID: "x"}}}}
		}},
		{"no stops", func(m *memStore) {
			m.trips = []Trip{{Status: TripActive}}
		}},
	}
	for _, tt := range tests {
		store := newMemStore()
		tt.setup(store)
		if tc := newTripResolver(store).Resolve(context.Background(), "v1"); tc != nil {
			t.Errorf("%s: got %+v, want nil", tt.name, tc)
		}
	}
}
