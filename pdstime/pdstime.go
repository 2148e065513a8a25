// Package pdstime converts the UTC time strings found in PDS3 labels into the
// forms PDS4 labels use, and computes ephemeris time for them.
package pdstime

import (
	"bufio"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Layout is the PDS4 UTC format written by Format.
const Layout = "2006-01-02T15:04:05.000Z"

var (
	doyPattern  = regexp.MustCompile(`^(\d{4})-(\d{3})(?:T(.*))?$`)
	datePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:T(.*))?$`)
	clockForms  = []string{"15:04:05", "15:04"}
)

// Parse reads a UTC time in day-of-year (2004-037T02:07:05.418) or calendar
// (2004-02-06T02:07:05.418) form. The time of day and a trailing Z are
// optional.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "Z")
	var day time.Time
	var clock string
	if m := doyPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		doy, _ := strconv.Atoi(m[2])
		if doy < 1 || doy > 366 || (doy == 366 && !leapYear(year)) {
			return time.Time{}, errors.Errorf("day of year out of range in %q", s)
		}
		day = time.Date(year, 1, doy, 0, 0, 0, 0, time.UTC)
		clock = m[3]
	} else if m := datePattern.FindStringSubmatch(s); m != nil {
		var err error
		day, err = time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3])
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "parsing date %q", s)
		}
		clock = m[4]
	} else {
		return time.Time{}, errors.Errorf("unrecognized time %q", s)
	}
	if clock == "" {
		return day, nil
	}
	for _, form := range clockForms {
		c, err := time.Parse(form, clock)
		if err == nil {
			return day.Add(c.Sub(time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC))), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized time of day in %q", s)
}

func leapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// Format writes t in the PDS4 UTC form with millisecond precision.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Normalize rewrites a PDS3 time string into the PDS4 form.
func Normalize(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(t), nil
}

// leapSeconds is TAI-UTC in seconds from each date on.
const leapSeconds = `
1972-01-01 10
1972-07-01 11
1973-01-01 12
1974-01-01 13
1975-01-01 14
1976-01-01 15
1977-01-01 16
1978-01-01 17
1979-01-01 18
1980-01-01 19
1981-07-01 20
1982-07-01 21
1983-07-01 22
1985-07-01 23
1988-01-01 24
1990-01-01 25
1991-01-01 26
1992-07-01 27
1993-07-01 28
1994-07-01 29
1996-01-01 30
1997-07-01 31
1999-01-01 32
2006-01-01 33
2009-01-01 34
2012-07-01 35
2015-07-01 36
2017-01-01 37
`

type leap struct {
	from  time.Time
	delta int
}

var (
	leapOnce  sync.Once
	leapTable []leap
)

func loadLeapSeconds() {
	sc := bufio.NewScanner(strings.NewReader(leapSeconds))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		from, err := time.Parse("2006-01-02", fields[0])
		if err != nil {
			panic(err)
		}
		delta, err := strconv.Atoi(fields[1])
		if err != nil {
			panic(err)
		}
		leapTable = append(leapTable, leap{from: from, delta: delta})
	}
}

// TAIMinusUTC returns the leap second offset in force at t. Times before
// 1972 get the 1972 value.
func TAIMinusUTC(t time.Time) int {
	leapOnce.Do(loadLeapSeconds)
	i := sort.Search(len(leapTable), func(i int) bool { return leapTable[i].from.After(t) })
	if i == 0 {
		return leapTable[0].delta
	}
	return leapTable[i-1].delta
}

var j2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// ET returns barycentric dynamical time as seconds past the J2000 epoch,
// using the same approximation as the SPICE toolkit's default leapseconds
// kernel.
func ET(t time.Time) float64 {
	const (
		k   = 1.657e-3
		eb  = 1.671e-2
		m0  = 6.239996
		m1  = 1.99096871e-7
		tdt = 32.184
	)
	utc := t.Sub(j2000).Seconds()
	ttSec := utc + float64(TAIMinusUTC(t)) + tdt
	m := m0 + m1*ttSec
	e := m + eb*math.Sin(m)
	return ttSec + k*math.Sin(e)
}
