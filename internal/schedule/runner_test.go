package schedule

import (
	"testing"
	"time"

	"backend/internal/db"
)

// monday 2026-03-02 07:30 本地时间（周一）
func monday(hh, mm int) time.Time {
	return time.Date(2026, 3, 2, hh, mm, 0, 0, time.Local)
}

func TestDue(t *testing.T) {
	cases := []struct {
		name  string
		entry db.ScheduleEntry
		now   time.Time
		want  bool
	}{
		{
			name:  "时间与星期命中",
			entry: db.ScheduleEntry{FireTime: "07:30", Weekdays: "1,3,5"},
			now:   monday(7, 30),
			want:  true,
		},
		{
			name:  "空星期表示每天",
			entry: db.ScheduleEntry{FireTime: "07:30"},
			now:   monday(7, 30),
			want:  true,
		},
		{
			name:  "时间不匹配",
			entry: db.ScheduleEntry{FireTime: "07:31", Weekdays: "1"},
			now:   monday(7, 30),
			want:  false,
		},
		{
			name:  "星期不匹配",
			entry: db.ScheduleEntry{FireTime: "07:30", Weekdays: "2,4"},
			now:   monday(7, 30),
			want:  false,
		},
		{
			name: "同一分钟内不重复触发",
			entry: db.ScheduleEntry{
				FireTime:  "07:30",
				LastFired: monday(7, 30).Add(10 * time.Second),
			},
			now:  monday(7, 30).Add(40 * time.Second),
			want: false,
		},
		{
			name: "上次触发在更早的分钟",
			entry: db.ScheduleEntry{
				FireTime:  "07:30",
				LastFired: monday(7, 30).AddDate(0, 0, -7),
			},
			now:  monday(7, 30),
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Due(&tc.entry, tc.now); got != tc.want {
				t.Errorf("Due = %v, 期望 %v", got, tc.want)
			}
		})
	}
}

func TestWeekdayMatchSunday(t *testing.T) {
	// time.Sunday是0，条目里周日用7
	sunday := time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
	entry := db.ScheduleEntry{FireTime: "08:00", Weekdays: "6,7"}
	if !Due(&entry, sunday) {
		t.Error("周日应当匹配星期7")
	}

	entry.Weekdays = "1,2,3,4,5"
	if Due(&entry, sunday) {
		t.Error("周日不应匹配工作日")
	}
}

func TestSplitTargets(t *testing.T) {
	got := splitTargets(" 1-1, 操场 ,,301 ")
	if len(got) != 3 || got[0] != "1-1" || got[1] != "操场" || got[2] != "301" {
		t.Fatalf("splitTargets = %v", got)
	}
	if got := splitTargets(""); len(got) != 0 {
		t.Fatalf("空字符串应当返回空列表, 得到 %v", got)
	}
}
