package assess

// Aggregate combines scale verdicts into one overall risk classification:
// the maximum severity wins, so any single high-risk scale carries the
// whole assessment. Reporting only; the result never feeds back into a
// field.
func Aggregate(verdicts map[ScaleID]Verdict) Level {
	risk := LevelClear
	for _, v := range verdicts {
		if v.Level.severity() > risk.severity() {
			risk = v.Level
		}
	}
	return risk
}
