package progression

// rankTable maps level thresholds to display ranks, highest match wins.
// Order matters: entries must be sorted by MinLevel ascending.
var rankTable = []struct {
	MinLevel int
	Label    string
}{
	{1, "Task Trainee"},
	{3, "Daily Doer"},
	{7, "Reliable Resolver"},
	{11, "Elite Executor"},
}

// RankForLevel returns the rank label for a level.
func RankForLevel(level int) string {
	label := rankTable[0].Label
	for _, entry := range rankTable {
		if level >= entry.MinLevel {
			label = entry.Label
		}
	}
	return label
}

// AddXP credits XP and normalizes. XP runs 0..99 within a level; every full
// 100 rolls into a level-up. The loop, not a single conditional, handles a
// single award spanning several levels without losing XP.
func AddXP(acc Account, amount int) Account {
	if amount < 0 {
		amount = 0
	}
	out := acc.Clone()
	out.XP += amount
	for out.XP >= 100 {
		out.XP -= 100
		out.Level++
	}
	out.Rank = RankForLevel(out.Level)
	return out
}

// LevelRequirementMet reports whether level satisfies requiredLevel.
// A requiredLevel of zero means ungated.
func LevelRequirementMet(level, requiredLevel int) bool {
	return level >= requiredLevel
}
