package kingdom

import (
	"fmt"
	"math"
	"time"
)

// Длины цикла между открытиями королевств (наблюдаемый темп игры).
const (
	EarliestCycle = 32 * time.Hour
	LikelyCycle   = 36 * time.Hour
	LatestCycle   = 38 * time.Hour
)

// DisplayLayout — "Monday, January 02 at 03:04 PM (EST)".
const DisplayLayout = "Monday, January 02 at 03:04 PM (MST)"

type Request struct {
	Location      *time.Location
	LatestKingdom int
	TargetKingdom int
	Elapsed       Elapsed
}

type Result struct {
	Request       Request
	KingdomsAhead int

	Earliest time.Time
	Likely   time.Time
	Latest   time.Time

	// Countdown — от now до Likely.
	Countdown time.Duration
}

// Predict считает три оценки открытия TargetKingdom.
// Для каждой полосы: (cycle - elapsed) + (kingdomsAhead-1)*cycle от now.
// Отрицательный первый отрезок (elapsed > cycle) не обрезается.
func Predict(req Request, now time.Time) (Result, error) {
	if req.TargetKingdom <= req.LatestKingdom {
		return Result{}, NewError(CodeInvalidRange,
			fmt.Sprintf("kingdom %d is not after kingdom %d", req.TargetKingdom, req.LatestKingdom))
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}

	ahead := req.TargetKingdom - req.LatestKingdom
	if ahead <= 0 {
		return Result{}, NewError(CodeTooFarAhead,
			fmt.Sprintf("kingdom %d is too far after kingdom %d", req.TargetKingdom, req.LatestKingdom))
	}
	elapsed, err := req.Elapsed.CheckedDuration()
	if err != nil {
		return Result{}, err
	}
	nowUTC := now.UTC()

	res := Result{Request: req, KingdomsAhead: ahead}
	for _, band := range []struct {
		cycle time.Duration
		at    *time.Time
	}{
		{EarliestCycle, &res.Earliest},
		{LikelyCycle, &res.Likely},
		{LatestCycle, &res.Latest},
	} {
		off, err := Offset(band.cycle, elapsed, ahead)
		if err != nil {
			return Result{}, err
		}
		*band.at = nowUTC.Add(off).In(loc)
	}
	res.Countdown = res.Likely.Sub(nowUTC)
	return res, nil
}

// Offset — смещение от текущего момента для одной полосы.
// Переполнение int64 наносекунд — ошибка CodeTooFarAhead.
func Offset(cycle, elapsed time.Duration, kingdomsAhead int) (time.Duration, error) {
	first, ok := addDuration(cycle, -elapsed)
	if !ok || elapsed == math.MinInt64 {
		return 0, NewError(CodeTooFarAhead, fmt.Sprintf("elapsed %v is out of range", elapsed))
	}
	rest, ok := mulDuration(kingdomsAhead-1, cycle)
	if !ok {
		return 0, NewError(CodeTooFarAhead, fmt.Sprintf("%d kingdoms ahead is out of range", kingdomsAhead))
	}
	total, ok := addDuration(first, rest)
	if !ok {
		return 0, NewError(CodeTooFarAhead, fmt.Sprintf("%d kingdoms ahead is out of range", kingdomsAhead))
	}
	return total, nil
}

// FormatInstant форматирует момент в DisplayLayout.
func FormatInstant(t time.Time) string {
	return t.Format(DisplayLayout)
}

// FormatCountdown: "D days, H hours, M minutes" если есть целые сутки, иначе "H hours, M minutes".
// Значения усекаются к нулю, не округляются; прошедший момент даёт отрицательные
// компоненты ("-4 hours, 0 minutes").
func FormatCountdown(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)

	if days != 0 {
		return fmt.Sprintf("%d days, %d hours, %d minutes", days, hours, minutes)
	}
	return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
}
