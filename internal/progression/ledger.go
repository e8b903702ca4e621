package progression

// Reward policy. XP is 10 per task (ten tasks per level), coins accrue from
// both task completion and login streaks.
const (
	TaskCompletionXP    = 10
	TaskCompletionCoins = 5
	StreakCoinRate      = 10 // coins per consecutive-day count, paid daily
)

// streakMilestones pay a one-time bonus the day the streak reaches the
// threshold. Streaks grow by one per day, so each threshold is crossed at
// most once per run.
var streakMilestones = []struct {
	Day   int
	Bonus int
}{
	{5, 50},
	{10, 100},
	{20, 250},
	{50, 1000},
}

// ApplyTaskCompletion records one checked-off task: bumps the lifetime and
// daily counters, credits coins, and awards XP (which may level the account
// up). The daily counter resets when day differs from the stored counter
// day. The task's own one-way completed transition is enforced where task
// state lives; by the time this runs the completion is already accepted.
func ApplyTaskCompletion(acc Account, day string) Account {
	out := acc.Clone()
	if out.TasksCheckedOffDay != day {
		out.TasksCheckedOffToday = 0
		out.TasksCheckedOffDay = day
	}
	out.TasksCheckedOff++
	out.TasksCheckedOffToday++
	out.Currency += TaskCompletionCoins
	return AddXP(out, TaskCompletionXP)
}

// ApplyLoginDay records a qualifying login for day. Idempotent per calendar
// day: a second call for the same day returns the state unchanged. On a
// consecutive day the streak grows and milestone bonuses may pay out; after
// a missed day the streak restarts at 1 and only the flat day bonus pays.
func ApplyLoginDay(acc Account, day string, isConsecutiveDay bool) Account {
	if acc.LastLoginDay == day {
		return acc.Clone()
	}
	out := acc.Clone()
	out.LastLoginDay = day
	if isConsecutiveDay {
		out.LoginStreak++
	} else {
		out.LoginStreak = 1
	}
	if out.LoginStreak > out.LoginStreakBest {
		out.LoginStreakBest = out.LoginStreak
	}
	out.Currency += StreakCoinRate * out.LoginStreak
	for _, m := range streakMilestones {
		if out.LoginStreak == m.Day {
			out.Currency += m.Bonus
		}
	}
	return out
}

// ApplyGoalScored bumps the goal counter. No XP or coins attach to goals.
func ApplyGoalScored(acc Account) Account {
	out := acc.Clone()
	out.Goals++
	return out
}
