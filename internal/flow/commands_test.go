package flow

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
		ok    bool
	}{
		{"/start", CmdStart, true},
		{"/help", CmdHelp, true},
		{"/newhabit", CmdNewHabit, true},
		{"/myhabits", CmdMyHabits, true},
		{"/complete", CmdComplete, true},
		{"/deletehabit", CmdDeleteHabit, true},
		{"/stats", CmdStats, true},
		{"/adddescription", CmdAddDescription, true},
		// Matching is exact: no case folding, trimming, or prefixes.
		{"/Start", "", false},
		{"/START", "", false},
		{" /start", "", false},
		{"/start ", "", false},
		{"/starting", "", false},
		{"/unknown", "", false},
		{"start", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseCommand(tc.input)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseCommand(%q) = (%q, %v), want (%q, %v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}
