package session

import "time"

// Trading sessions in New York time. The trail records the session a sample
// was taken in as a numeric code, so the miner can discover session-bound
// rules (e.g. "minute-3 samples inside the dead zone tend to go bad").

type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionDeadZone       Session = "dead_zone"
	SessionAsia           Session = "asia_session"
	SessionLondon         Session = "london_session"
	SessionUS             Session = "us_session"
	SessionDefault        Session = "default"

	daysPerWeek          = 7
	sundayHolidayOffset  = 1
	thirdMondayOffset    = 2
	fourthThursdayOffset = 3
)

// codes are stable: they end up persisted in trail snapshots and mined
// against, so reordering them would silently invalidate historical rules.
var sessionCodes = map[Session]float64{
	SessionWeekendHoliday: 0,
	SessionDeadZone:       1,
	SessionAsia:           2,
	SessionLondon:         3,
	SessionUS:             4,
	SessionDefault:        5,
}

var sessionMultipliers = map[Session]float64{
	SessionWeekendHoliday: 0.15,
	SessionDeadZone:       0.15,
	SessionAsia:           0.75,
	SessionLondon:         1.0,
	SessionUS:             1.25,
	SessionDefault:        0.15,
}

// State is the session/cycle snapshot for one instant.
type State struct {
	Session        Session
	Code           float64
	SizeMultiplier float64
	NoTradeWindow  bool
	HourNY         float64
	Weekday        float64
}

// Detect classifies an instant into a NY trading session.
func Detect(now time.Time) State {
	et := easternTime(now)
	sess := detectSession(et)

	return State{
		Session:        sess,
		Code:           sessionCodes[sess],
		SizeMultiplier: sessionMultipliers[sess],
		NoTradeWindow:  isNoTradeWindowNY(et),
		HourNY:         float64(et.Hour()),
		Weekday:        float64(et.Weekday()),
	}
}

func easternTime(t time.Time) time.Time {
	nyLocation, err := time.LoadLocation("America/New_York")
	if err != nil {
		return t.UTC()
	}
	return t.In(nyLocation)
}

// isNoTradeWindowNY covers Friday after the UK session until Sunday begin of
// the UK session: Friday 09:00 NY until Sunday 03:00 NY, plus US holidays.
func isNoTradeWindowNY(t time.Time) bool {
	// Sunday during the London session is allowed to trade, so it must opt
	// out of the window explicitly.
	if t.Weekday() == time.Sunday && isLondonSession(t) {
		return t.Hour() < 3
	}

	if isHoliday(t) {
		return true
	}

	h := t.Hour()
	switch t.Weekday() {
	case time.Friday:
		return h >= 9
	case time.Saturday:
		return true
	case time.Sunday:
		return h < 3
	default:
		return false
	}
}

func detectSession(t time.Time) Session {
	if t.Weekday() == time.Sunday && isLondonSession(t) {
		return SessionLondon
	}

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday || isHoliday(t) {
		return SessionWeekendHoliday
	}

	switch {
	case isDeadZone(t):
		return SessionDeadZone
	case isAsiaSession(t):
		return SessionAsia
	case isLondonSession(t):
		return SessionLondon
	case isUSSession(t):
		return SessionUS
	default:
		return SessionDefault
	}
}

func isDeadZone(t time.Time) bool {
	return t.Hour() >= 17 && t.Hour() < 20
}

func isAsiaSession(t time.Time) bool {
	return t.Hour() >= 20 || t.Hour() < 3
}

func isLondonSession(t time.Time) bool {
	return t.Hour() >= 3 && t.Hour() < 9
}

func isUSSession(t time.Time) bool {
	return t.Hour() >= 9 && t.Hour() <= 17
}

func isHoliday(t time.Time) bool {
	year := t.Year()

	newYearsDay := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if newYearsDay.Weekday() == time.Sunday {
		newYearsDay = newYearsDay.AddDate(0, 0, sundayHolidayOffset)
	}

	mlkDay := nthMonday(year, time.January, thirdMondayOffset)
	presidentsDay := nthMonday(year, time.February, thirdMondayOffset)

	memorialDay := time.Date(year, time.May, 31, 0, 0, 0, 0, time.UTC)
	for memorialDay.Weekday() != time.Monday {
		memorialDay = memorialDay.AddDate(0, 0, -1)
	}

	independenceDay := time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)
	if independenceDay.Weekday() == time.Sunday {
		independenceDay = independenceDay.AddDate(0, 0, sundayHolidayOffset)
	}

	laborDay := nthMonday(year, time.September, 0)
	thanksgivingDay := nthThursday(year, time.November, fourthThursdayOffset)

	christmasDay := time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)
	if christmasDay.Weekday() == time.Sunday {
		christmasDay = christmasDay.AddDate(0, 0, sundayHolidayOffset)
	}

	holidays := []time.Time{
		newYearsDay,
		mlkDay,
		presidentsDay,
		memorialDay,
		independenceDay,
		laborDay,
		thanksgivingDay,
		christmasDay,
	}
	return isDateAmong(t, holidays)
}

func nthMonday(year int, month time.Month, mondayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Monday-firstOfMonth.Weekday()+daysPerWeek) % daysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+mondayOffset*daysPerWeek)
}

func nthThursday(year int, month time.Month, thursdayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Thursday-firstOfMonth.Weekday()+daysPerWeek) % daysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+thursdayOffset*daysPerWeek)
}

func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
