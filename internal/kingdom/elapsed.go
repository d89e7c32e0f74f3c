package kingdom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Elapsed — сколько уже открыто последнее королевство, как ввёл пользователь.
// Минуты >= 60 и отрицательные значения не нормализуются.
type Elapsed struct {
	Hours   int
	Minutes int
}

// DecimalHours возвращает десятичные часы: hours + minutes/60.
func (e Elapsed) DecimalHours() float64 {
	return float64(e.Hours) + float64(e.Minutes)/60.0
}

// Duration — то же время как time.Duration. Для значений, не влезающих в int64
// наносекунд, результат не определён; такие значения отсекает CheckedDuration.
func (e Elapsed) Duration() time.Duration {
	return time.Duration(e.Hours)*time.Hour + time.Duration(e.Minutes)*time.Minute
}

// CheckedDuration — Duration с проверкой переполнения.
func (e Elapsed) CheckedDuration() (time.Duration, error) {
	h, ok := mulDuration(e.Hours, time.Hour)
	if !ok {
		return 0, NewError(CodeInvalidDurationFormat, fmt.Sprintf("elapsed %d hours is out of range", e.Hours))
	}
	m, ok := mulDuration(e.Minutes, time.Minute)
	if !ok {
		return 0, NewError(CodeInvalidDurationFormat, fmt.Sprintf("elapsed %d minutes is out of range", e.Minutes))
	}
	d, ok := addDuration(h, m)
	if !ok {
		return 0, NewError(CodeInvalidDurationFormat, fmt.Sprintf("elapsed %s is out of range", e))
	}
	return d, nil
}

func (e Elapsed) String() string {
	return fmt.Sprintf("%dh %dm", e.Hours, e.Minutes)
}

// ParseElapsed разбирает "19h6m", "2h", "45m", "1h30m" или просто число часов.
//
// Порядок правил:
//  1. есть и 'h', и 'm' — делим по первой 'h'; часть до неё (только цифры) — часы,
//     остаток без 'm' (только цифры) — минуты; нецифровые части дают 0;
//  2. только 'h' — убираем все 'h', остаток целое число часов;
//  3. только 'm' — убираем все 'm', остаток целое число минут;
//  4. иначе вся строка — целое число часов.
//
// Значение, которое не помещается в time.Duration, тоже ошибка формата.
func ParseElapsed(text string) (Elapsed, error) {
	e, err := parseElapsed(text)
	if err != nil {
		return Elapsed{}, err
	}
	if _, err := e.CheckedDuration(); err != nil {
		return Elapsed{}, durationError(text, err)
	}
	return e, nil
}

func parseElapsed(text string) (Elapsed, error) {
	s := strings.ToLower(strings.TrimSpace(text))

	hasH := strings.Contains(s, "h")
	hasM := strings.Contains(s, "m")

	switch {
	case hasH && hasM:
		before, after, _ := strings.Cut(s, "h")
		rest := strings.ReplaceAll(after, "m", "")
		var e Elapsed
		if isDigits(before) {
			h, err := strconv.Atoi(before)
			if err != nil {
				return Elapsed{}, durationError(text, err)
			}
			e.Hours = h
		}
		if isDigits(rest) {
			m, err := strconv.Atoi(rest)
			if err != nil {
				return Elapsed{}, durationError(text, err)
			}
			e.Minutes = m
		}
		return e, nil

	case hasH:
		h, err := atoi(strings.ReplaceAll(s, "h", ""))
		if err != nil {
			return Elapsed{}, durationError(text, err)
		}
		return Elapsed{Hours: h}, nil

	case hasM:
		m, err := atoi(strings.ReplaceAll(s, "m", ""))
		if err != nil {
			return Elapsed{}, durationError(text, err)
		}
		return Elapsed{Minutes: m}, nil

	default:
		h, err := atoi(s)
		if err != nil {
			return Elapsed{}, durationError(text, err)
		}
		return Elapsed{Hours: h}, nil
	}
}

// atoi допускает пробелы вокруг и знак, как и обычный ввод числа.
func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// mulDuration — n*unit или false при переполнении int64; unit > 0.
func mulDuration(n int, unit time.Duration) (time.Duration, bool) {
	if int64(n) > math.MaxInt64/int64(unit) || int64(n) < math.MinInt64/int64(unit) {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// addDuration — a+b или false при переполнении.
func addDuration(a, b time.Duration) (time.Duration, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func durationError(text string, err error) error {
	return WrapError(err, CodeInvalidDurationFormat, fmt.Sprintf("invalid elapsed time %q", text))
}
