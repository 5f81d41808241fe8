package logic

import (
	"fmt"
	"time"

	"github.com/lltxwdk/minimars-server/internal/models"
)

// HolidayCalendar decides whether a date is an off day (weekend or public holiday).
type HolidayCalendar struct {
	offWeekdays map[string]struct{}
	onWeekends  map[string]struct{}
}

func NewHolidayCalendar(settings *models.Settings) *HolidayCalendar {
	c := &HolidayCalendar{
		offWeekdays: map[string]struct{}{},
		onWeekends:  map[string]struct{}{},
	}
	if settings == nil {
		return c
	}
	for _, d := range settings.OffWeekdays {
		c.offWeekdays[d] = struct{}{}
	}
	for _, d := range settings.OnWeekends {
		c.onWeekends[d] = struct{}{}
	}
	return c
}

// IsOffDay: 法定假日為休息日，調休的週末為工作日，其餘依星期判斷
func (c *HolidayCalendar) IsOffDay(date string) (bool, error) {
	t, err := time.ParseInLocation(models.DateLayout, date, time.Local)
	if err != nil {
		return false, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if _, ok := c.offWeekdays[date]; ok {
		return true, nil
	}
	if _, ok := c.onWeekends[date]; ok {
		return false, nil
	}
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday, nil
}
