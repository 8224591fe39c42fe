package calendar

import (
	"fmt"
	"time"
)

// FiscalYearStartMonth: финансовый год начинается 1 апреля.
const FiscalYearStartMonth = time.April

// PeriodKey возвращает ключ финансового года для локальной даты:
// 2025-03-31 → FY2024, 2025-04-01 → FY2025.
func PeriodKey(localDate time.Time) string {
	year, month, _ := localDate.Date()
	if month < FiscalYearStartMonth {
		year--
	}
	return fmt.Sprintf("FY%d", year)
}

// CurrentPeriodKey: ключ финансового года для момента now в часовом поясе loc.
func CurrentPeriodKey(now time.Time, loc *time.Location) string {
	return PeriodKey(now.In(loc))
}
