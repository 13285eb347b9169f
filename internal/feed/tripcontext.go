package feed

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"solafeed/internal/metrics"
)

// TripContextResolver 选出进行中的行程，否则选最早出发的未完成行程，把停靠点转成城市/国家集合
type TripContextResolver struct {
	lookup TripLookup
	logger zerolog.Logger
}

func NewTripContextResolver(lookup TripLookup, logger zerolog.Logger) *TripContextResolver {
	return &TripContextResolver{
		lookup: lookup,
		logger: logger.With().Str("component", "feed.trip_context").Logger(),
	}
}

// Resolve 没有合适行程或出错时返回 nil (不加权)
func (r *TripContextResolver) Resolve(ctx context.Context, viewerID string) *TripContext {
	trips, err := r.lookup.LookupTrips(ctx, viewerID)
	if err != nil {
		r.failOpen(err, viewerID, "trip lookup failed")
		return nil
	}

	trip := pickTrip(trips)
	if trip == nil || len(trip.Stops) == 0 {
		return nil
	}

	cityIDs := make([]string, 0, len(trip.Stops))
	codeSeen := make(map[string]bool)
	codes := make([]string, 0, len(trip.Stops))
	for _, s := range trip.Stops {
		cityIDs = append(cityIDs, s.CityID)
		code := strings.ToUpper(strings.TrimSpace(s.CountryIso2))
		if code != "" && !codeSeen[code] {
			codeSeen[code] = true
			codes = append(codes, code)
		}
	}

	countryIDs := make([]string, 0, len(codes))
	if len(codes) > 0 {
		byCode, err := r.lookup.LookupCountries(ctx, codes)
		if err != nil {
			r.failOpen(err, viewerID, "country lookup failed")
			return nil
		}
		for _, code := range codes {
			if id, ok := byCode[code]; ok {
				countryIDs = append(countryIDs, id)
			}
		}
	}

	return &TripContext{
		CityIDs:    setOf(cityIDs),
		CountryIDs: setOf(countryIDs),
	}
}

func (r *TripContextResolver) failOpen(err error, viewerID, msg string) {
	metrics.ResolverFailOpen.WithLabelValues("trip_context").Inc()
	r.logger.Warn().Err(err).Str("viewer", viewerID).Msg(msg)
}

// pickTrip 进行中 > 按到达日期最早的计划行程，没有日期的排最后
func pickTrip(trips []Trip) *Trip {
	upcoming := make([]*Trip, 0, len(trips))
	for i := range trips {
		t := &trips[i]
		switch t.Status {
		case TripActive:
			return t
		case TripCompleted:
			continue
		}
		upcoming = append(upcoming, t)
	}
	if len(upcoming) == 0 {
		return nil
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		a, b := upcoming[i].Arriving, upcoming[j].Arriving
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.Before(b)
	})
	return upcoming[0]
}
