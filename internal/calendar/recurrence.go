package calendar

import (
	"errors"
	"time"
)

// DayRule: по каким дням генерировать слоты в диапазоне дат.
type DayRule struct {
	From     time.Time      // первая дата, включительно
	Until    time.Time      // последняя дата, включительно
	Interval int            // каждые Interval дней (>=1)
	Weekdays []time.Weekday // пусто: любые дни
	// Исключения по датам (полночь UTC, как в ParseLocalDate).
	Exceptions map[time.Time]struct{}
}

// MaxExpandDays ограничивает размер одной генерации.
const MaxExpandDays = 366

var ErrDayRuleTooLong = errors.New("day rule spans more than a year")

// ExpandDays разворачивает правило в список дат (полночь UTC).
func ExpandDays(rule DayRule) ([]time.Time, error) {
	if rule.From.IsZero() || rule.Until.IsZero() {
		return nil, ErrInvalidTimeRange
	}
	if rule.Until.Before(rule.From) {
		return []time.Time{}, nil
	}
	if rule.Until.Sub(rule.From) > MaxExpandDays*24*time.Hour {
		return nil, ErrDayRuleTooLong
	}
	if rule.Interval <= 0 {
		rule.Interval = 1
	}

	var days []time.Time
	for cur := dateOnly(rule.From); !cur.After(rule.Until); cur = cur.AddDate(0, 0, rule.Interval) {
		if len(rule.Weekdays) > 0 && !containsWeekday(rule.Weekdays, cur.Weekday()) {
			continue
		}
		if _, skip := rule.Exceptions[cur]; skip {
			continue
		}
		days = append(days, cur)
	}
	return days, nil
}

func containsWeekday(list []time.Weekday, w time.Weekday) bool {
	for _, d := range list {
		if d == w {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
