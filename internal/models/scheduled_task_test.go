package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledTaskNextRunAfter(t *testing.T) {
	due := time.Date(2025, 1, 4, 8, 0, 0, 0, time.UTC)
	weekly := "FREQ=WEEKLY"
	once := "FREQ=WEEKLY;COUNT=1"
	broken := "FREQ=SOMETIMES"

	tests := []struct {
		name   string
		task   ScheduledTask
		now    time.Time
		want   time.Time
		wantOK bool
	}{
		{
			name: "one time task has no next run",
			task: ScheduledTask{TaskType: ScheduledTaskTypeOneTime, Due: due, RecurringInterval: &weekly},
			now:  due,
		},
		{
			name:   "recurring task moves one interval forward",
			task:   ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &weekly},
			now:    due.Add(time.Minute),
			want:   due.AddDate(0, 0, 7),
			wantOK: true,
		},
		{
			name:   "missed runs are skipped",
			task:   ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &weekly},
			now:    due.AddDate(0, 0, 15),
			want:   due.AddDate(0, 0, 21),
			wantOK: true,
		},
		{
			name: "exhausted rule",
			task: ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &once},
			now:  due,
		},
		{
			name: "unparsable rule",
			task: ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &broken},
			now:  due,
		},
		{
			name: "missing rule",
			task: ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due},
			now:  due,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.task.NextRunAfter(tt.now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestScheduledTaskRecurrence(t *testing.T) {
	_, err := ScheduledTask{}.Recurrence()
	assert.ErrorIs(t, err, ErrNoRecurrence)

	rule := "FREQ=DAILY;COUNT=3"
	due := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	r, err := ScheduledTask{Due: due, RecurringInterval: &rule}.Recurrence()
	require.NoError(t, err)
	assert.Equal(t, []time.Time{due, due.AddDate(0, 0, 1), due.AddDate(0, 0, 2)}, r.All())
}

func TestScheduledTaskAttempts(t *testing.T) {
	assert.Equal(t, 1, ScheduledTask{}.Attempts())
	assert.Equal(t, 1, ScheduledTask{MaxAttempt: -2}.Attempts())
	assert.Equal(t, 3, ScheduledTask{MaxAttempt: 3}.Attempts())
}

func TestScheduledTaskNewRun(t *testing.T) {
	at := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	task := ScheduledTask{ID: 7, TaskName: "log_info", Arguments: map[string]interface{}{"message": "hi"}}

	run := task.NewRun(2, at)
	assert.Equal(t, uint(7), run.ScheduledTaskID)
	assert.Equal(t, "log_info", run.TaskName)
	assert.Equal(t, 2, run.AttemptNumber)
	assert.Equal(t, at, run.RunAt)
	assert.Equal(t, "hi", run.Arguments["message"])
}

func TestMatchMemberIDsKeepsAttendanceOrder(t *testing.T) {
	m := Match{Attendances: []MatchAttendance{{MemberID: "m2"}, {MemberID: "m1"}, {MemberID: "m3"}}}
	assert.Equal(t, []string{"m2", "m1", "m3"}, m.MemberIDs())
}
