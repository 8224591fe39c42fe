package service

import "time"

// Clock: единственный источник "сейчас". Операция читает его один раз.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}
