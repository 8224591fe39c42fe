package calendar

import (
	"fmt"
	"time"
)

var jaWeekdays = map[time.Weekday]string{
	time.Monday:    "月",
	time.Tuesday:   "火",
	time.Wednesday: "水",
	time.Thursday:  "木",
	time.Friday:    "金",
	time.Saturday:  "土",
	time.Sunday:    "日",
}

// FormatSlotLabel форматирует интервал для показа сотруднику: "2025/05/10(土) 09:00〜09:30".
// Если loc != nil, время переводится в указанный часовой пояс.
func FormatSlotLabel(tr TimeRange, loc *time.Location) string {
	start, end := tr.Start, tr.End
	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}
	return fmt.Sprintf("%s(%s) %s〜%s",
		start.Format("2006/01/02"),
		jaWeekdays[start.Weekday()],
		start.Format("15:04"),
		end.Format("15:04"),
	)
}
