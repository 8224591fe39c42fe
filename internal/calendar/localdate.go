package calendar

import (
	"errors"
	"regexp"
	"time"

	"gorm.io/datatypes"
)

const (
	LocalDateLayout = "2006-01-02"
	MinutesPerDay   = 24 * 60
)

var (
	ErrInvalidLocalDate   = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidMinuteOfDay = errors.New("minute of day must be between 0 and 1439")
)

var localDateRe = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)

// ParseLocalDate разбирает YYYY-MM-DD в полночь UTC. Так локальные даты
// хранятся в БД: без зоны, сравниваются как даты.
func ParseLocalDate(s string) (datatypes.Date, error) {
	if !localDateRe.MatchString(s) {
		return datatypes.Date{}, ErrInvalidLocalDate
	}
	t, err := time.ParseInLocation(LocalDateLayout, s, time.UTC)
	if err != nil {
		return datatypes.Date{}, ErrInvalidLocalDate
	}
	return datatypes.Date(t), nil
}

func FormatLocalDate(d datatypes.Date) string {
	return time.Time(d).UTC().Format(LocalDateLayout)
}

// LocalDateOf: локальная дата момента t в зоне loc, в формате хранения.
func LocalDateOf(t time.Time, loc *time.Location) datatypes.Date {
	y, m, d := t.In(loc).Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func ValidMinuteOfDay(minute int) bool {
	return minute >= 0 && minute < MinutesPerDay
}

// AtMinute: абсолютный момент: полночь локальной даты в loc плюс minute минут.
func AtMinute(date datatypes.Date, minute int, loc *time.Location) time.Time {
	y, m, d := time.Time(date).UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(minute) * time.Minute)
}
