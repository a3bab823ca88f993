// Package schedule decides whether and for how long a stacking session
// should run tonight, from the sun's altitude at the observing site. It is
// consulted exactly once at startup.
package schedule

import (
	"math"
	"time"
)

// Site describes the observing location. Longitude is positive east,
// latitude positive north, elevation in metres above sea level.
type Site struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	ElevationM   float64
	// SunLimitDeg is the solar altitude threshold in degrees: the session
	// runs only while the sun is below it.
	SunLimitDeg float64
}

// maxSession caps the scan for the next sun rise. At polar latitudes the
// sun may stay below the limit for days; the session is then capped here
// and the next run re-evaluates.
const maxSession = 48 * time.Hour

// SessionDuration returns how long a session starting at now should run:
// a negative duration when the sun is at or above the limit (do not run),
// otherwise the time until the sun next climbs above the limit.
func (s Site) SessionDuration(now time.Time) time.Duration {
	limit := s.SunLimitDeg - s.horizonDip()
	if s.SolarAltitude(now) >= limit {
		return -time.Second
	}

	// Coarse scan for the upward crossing, then bisect to the second.
	const step = 10 * time.Minute
	prev := now
	for t := now.Add(step); t.Sub(now) <= maxSession; t = t.Add(step) {
		if s.SolarAltitude(t) >= limit {
			return s.bisectRise(prev, t, limit).Sub(now)
		}
		prev = t
	}
	return maxSession
}

// bisectRise narrows the rise crossing inside (lo, hi] to one second.
func (s Site) bisectRise(lo, hi time.Time, limit float64) time.Time {
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if s.SolarAltitude(mid) >= limit {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

// horizonDip is the apparent lowering of the horizon with elevation, in
// degrees (the 1.76'*sqrt(h) approximation).
func (s Site) horizonDip() float64 {
	if s.ElevationM <= 0 {
		return 0
	}
	return 1.76 * math.Sqrt(s.ElevationM) / 60
}

// SolarAltitude returns the sun's altitude above the horizon in degrees at
// t, using the NOAA solar position approximation (no refraction). Accuracy
// is a few arcminutes, ample for a run/don't-run threshold.
func (s Site) SolarAltitude(t time.Time) float64 {
	u := t.UTC()

	// Fractional year, radians.
	hours := float64(u.Hour()) + float64(u.Minute())/60 + float64(u.Second())/3600
	gamma := 2 * math.Pi / 365 * (float64(u.YearDay()) - 1 + (hours-12)/24)

	// Equation of time (minutes) and solar declination (radians).
	eqTime := 229.18 * (0.000075 +
		0.001868*math.Cos(gamma) - 0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) - 0.040849*math.Sin(2*gamma))
	decl := 0.006918 -
		0.399912*math.Cos(gamma) + 0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) + 0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) + 0.00148*math.Sin(3*gamma)

	// True solar time (minutes) and hour angle (degrees).
	timeOffset := eqTime + 4*s.LongitudeDeg
	tst := hours*60 + timeOffset
	ha := tst/4 - 180

	lat := s.LatitudeDeg * math.Pi / 180
	haRad := ha * math.Pi / 180

	cosZenith := math.Sin(lat)*math.Sin(decl) +
		math.Cos(lat)*math.Cos(decl)*math.Cos(haRad)
	cosZenith = math.Max(-1, math.Min(1, cosZenith))

	return 90 - math.Acos(cosZenith)*180/math.Pi
}
