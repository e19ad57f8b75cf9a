package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/HabitPipe/internal/store"
)

func newTestFlow(t *testing.T) (*HabitFlow, store.Store, *MemoryStateTable) {
	t.Helper()
	st := store.NewInMemoryStore()
	states := NewMemoryStateTable()
	return NewHabitFlow(st, states), st, states
}

func TestCreateHabitDialogue(t *testing.T) {
	ctx := context.Background()
	f, st, states := newTestFlow(t)

	reply := f.HandleMessage(ctx, "user1", "/newhabit")
	if reply != msgEnterHabitName {
		t.Errorf("expected name prompt, got %q", reply)
	}

	reply = f.HandleMessage(ctx, "user1", "Exercise")
	if !strings.Contains(reply, "Exercise") {
		t.Errorf("expected description prompt mentioning the habit name, got %q", reply)
	}

	reply = f.HandleMessage(ctx, "user1", "-")
	if !strings.Contains(reply, "created") {
		t.Errorf("expected creation confirmation, got %q", reply)
	}
	if _, ok := states.Get("user1"); ok {
		t.Error("expected dialogue state to be cleared after creation")
	}

	habits, err := st.ListHabits("user1")
	if err != nil {
		t.Fatalf("ListHabits failed: %v", err)
	}
	if len(habits) != 1 || habits[0].Name != "Exercise" || habits[0].Description != "" {
		t.Errorf("unexpected stored habit: %+v", habits)
	}

	reply = f.HandleMessage(ctx, "user1", "/myhabits")
	if !strings.Contains(reply, "Exercise") || !strings.Contains(reply, "0/0") {
		t.Errorf("expected habit listing with counters, got %q", reply)
	}
}

func TestCreateHabitWithDescription(t *testing.T) {
	ctx := context.Background()
	f, st, _ := newTestFlow(t)

	f.HandleMessage(ctx, "user1", "/newhabit")
	f.HandleMessage(ctx, "user1", "Read")
	reply := f.HandleMessage(ctx, "user1", "20 pages a day")
	if !strings.Contains(reply, "20 pages a day") {
		t.Errorf("expected confirmation to echo the description, got %q", reply)
	}

	habits, _ := st.ListHabits("user1")
	if len(habits) != 1 || habits[0].Description != "20 pages a day" {
		t.Errorf("unexpected stored habit: %+v", habits)
	}
}

func TestCreateHabitRejectsBlankName(t *testing.T) {
	ctx := context.Background()
	f, _, states := newTestFlow(t)

	f.HandleMessage(ctx, "user1", "/newhabit")
	reply := f.HandleMessage(ctx, "user1", "   ")
	if reply != msgEmptyHabitName {
		t.Errorf("expected blank-name re-prompt, got %q", reply)
	}
	state, ok := states.Get("user1")
	if !ok || state.Phase() != PhaseAwaitingHabitName {
		t.Errorf("expected to stay in the name phase, got %v (ok=%v)", state, ok)
	}
}

func TestCreateHabitRejectsOverlongInput(t *testing.T) {
	ctx := context.Background()
	f, st, states := newTestFlow(t)

	f.HandleMessage(ctx, "user1", "/newhabit")
	reply := f.HandleMessage(ctx, "user1", strings.Repeat("x", 201))
	if reply != msgHabitNameTooLong {
		t.Errorf("expected too-long-name re-prompt, got %q", reply)
	}
	if state, ok := states.Get("user1"); !ok || state.Phase() != PhaseAwaitingHabitName {
		t.Errorf("expected to stay in the name phase, got %v (ok=%v)", state, ok)
	}

	f.HandleMessage(ctx, "user1", "Exercise")
	reply = f.HandleMessage(ctx, "user1", strings.Repeat("x", 2001))
	if reply != msgDescriptionTooLong {
		t.Errorf("expected too-long-description re-prompt, got %q", reply)
	}
	if state, ok := states.Get("user1"); !ok || state.Phase() != PhaseAwaitingHabitDescription {
		t.Errorf("expected to stay in the description phase, got %v (ok=%v)", state, ok)
	}

	// A valid retry still completes the flow.
	if reply := f.HandleMessage(ctx, "user1", "-"); !strings.Contains(reply, "created") {
		t.Errorf("expected creation confirmation, got %q", reply)
	}
	if habits, _ := st.ListHabits("user1"); len(habits) != 1 {
		t.Errorf("expected one habit, got %d", len(habits))
	}
}

func TestCommandAbandonsDialogue(t *testing.T) {
	ctx := context.Background()
	f, st, states := newTestFlow(t)

	f.HandleMessage(ctx, "user1", "/newhabit")
	reply := f.HandleMessage(ctx, "user1", "/deletehabit")
	if reply != msgNoHabitsDelete {
		t.Errorf("expected empty-delete reply, got %q", reply)
	}
	// The "no habits" reply is terminal, so the abandoned name phase is
	// still in place until another command replaces it.
	if state, ok := states.Get("user1"); !ok || state.Phase() != PhaseAwaitingHabitName {
		t.Errorf("expected the previous phase to remain, got %v (ok=%v)", state, ok)
	}

	if _, err := st.CreateHabit("user1", "Exercise", ""); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}
	reply = f.HandleMessage(ctx, "user1", "/deletehabit")
	if !strings.Contains(reply, "Exercise") {
		t.Errorf("expected delete chooser, got %q", reply)
	}
	if state, ok := states.Get("user1"); !ok || state.Phase() != PhaseAwaitingDeletionID {
		t.Errorf("expected deletion phase, got %v (ok=%v)", state, ok)
	}
}

func TestCompleteHabit(t *testing.T) {
	ctx := context.Background()
	f, st, _ := newTestFlow(t)

	id, err := st.CreateHabit("user1", "Exercise", "")
	if err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	reply := f.HandleMessage(ctx, "user1", "/complete")
	if !strings.Contains(reply, "#1") {
		t.Errorf("expected chooser listing habit ids, got %q", reply)
	}
	reply = f.HandleMessage(ctx, "user1", " 1 ")
	if reply != msgHabitCompleted {
		t.Errorf("expected completion confirmation, got %q", reply)
	}

	habit, _ := st.GetHabit(id, "user1")
	if habit.CompletedDays != 1 || habit.TotalDays != 1 {
		t.Errorf("expected counters 1/1, got %d/%d", habit.CompletedDays, habit.TotalDays)
	}
}

func TestCompleteHabitBadInput(t *testing.T) {
	ctx := context.Background()
	f, st, states := newTestFlow(t)

	if _, err := st.CreateHabit("user1", "Exercise", ""); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	f.HandleMessage(ctx, "user1", "/complete")
	reply := f.HandleMessage(ctx, "user1", "abc")
	if reply != msgEnterNumber {
		t.Errorf("expected parse-error reply, got %q", reply)
	}
	if _, ok := states.Get("user1"); ok {
		t.Error("expected state to be cleared after a parse failure")
	}

	// The failed attempt did not leave a dialogue behind.
	reply = f.HandleMessage(ctx, "user1", "1")
	if reply != msgUnknownCommand {
		t.Errorf("expected unknown-command reply, got %q", reply)
	}
}

func TestCompleteHabitUnknownID(t *testing.T) {
	ctx := context.Background()
	f, st, _ := newTestFlow(t)

	if _, err := st.CreateHabit("user1", "Exercise", ""); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}
	f.HandleMessage(ctx, "user1", "/complete")
	reply := f.HandleMessage(ctx, "user1", "42")
	if reply != msgHabitNotFound {
		t.Errorf("expected not-found reply, got %q", reply)
	}
}

func TestDeleteHabitDialogue(t *testing.T) {
	ctx := context.Background()
	f, st, _ := newTestFlow(t)

	id, err := st.CreateHabit("user1", "Exercise", "")
	if err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	f.HandleMessage(ctx, "user1", "/deletehabit")
	reply := f.HandleMessage(ctx, "user1", "1")
	if reply != msgHabitDeleted {
		t.Errorf("expected deletion confirmation, got %q", reply)
	}
	if habit, _ := st.GetHabit(id, "user1"); habit != nil {
		t.Errorf("expected habit to be gone, got %+v", habit)
	}
}

func TestAddDescriptionDialogue(t *testing.T) {
	ctx := context.Background()
	f, st, states := newTestFlow(t)

	id, err := st.CreateHabit("user1", "Exercise", "old text")
	if err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	reply := f.HandleMessage(ctx, "user1", "/adddescription")
	if !strings.Contains(reply, "Exercise") {
		t.Errorf("expected chooser, got %q", reply)
	}

	reply = f.HandleMessage(ctx, "user1", "1")
	if !strings.Contains(reply, "old text") {
		t.Errorf("expected prompt to show the current description, got %q", reply)
	}
	if state, ok := states.Get("user1"); !ok || state.Phase() != PhaseAwaitingDescriptionText {
		t.Errorf("expected text phase, got %v (ok=%v)", state, ok)
	}

	reply = f.HandleMessage(ctx, "user1", "new text")
	if reply != msgDescUpdated {
		t.Errorf("expected update confirmation, got %q", reply)
	}
	habit, _ := st.GetHabit(id, "user1")
	if habit.Description != "new text" {
		t.Errorf("expected description to be replaced, got %q", habit.Description)
	}

	// A '-' reply clears the description.
	f.HandleMessage(ctx, "user1", "/adddescription")
	f.HandleMessage(ctx, "user1", "1")
	reply = f.HandleMessage(ctx, "user1", "-")
	if reply != msgDescRemoved {
		t.Errorf("expected removal confirmation, got %q", reply)
	}
	habit, _ = st.GetHabit(id, "user1")
	if habit.Description != "" {
		t.Errorf("expected description cleared, got %q", habit.Description)
	}
}

func TestAddDescriptionUnknownID(t *testing.T) {
	ctx := context.Background()
	f, st, states := newTestFlow(t)

	if _, err := st.CreateHabit("user1", "Exercise", ""); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}
	f.HandleMessage(ctx, "user1", "/adddescription")
	reply := f.HandleMessage(ctx, "user1", "42")
	if reply != msgHabitNotFound {
		t.Errorf("expected not-found reply, got %q", reply)
	}
	if _, ok := states.Get("user1"); ok {
		t.Error("expected state to be cleared after a failed lookup")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f, st, _ := newTestFlow(t)

	reply := f.HandleMessage(ctx, "user1", "/stats")
	if reply != msgNoStatsYet {
		t.Errorf("expected empty-stats reply, got %q", reply)
	}

	id, err := st.CreateHabit("user1", "Exercise", "")
	if err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}
	if _, err := st.RecordCompletion(id, "user1"); err != nil {
		t.Fatalf("RecordCompletion failed: %v", err)
	}

	reply = f.HandleMessage(ctx, "user1", "/stats")
	if !strings.Contains(reply, "100.0%") {
		t.Errorf("expected success rate in stats, got %q", reply)
	}
}

func TestStartAndHelpLeaveStateAlone(t *testing.T) {
	ctx := context.Background()
	f, _, states := newTestFlow(t)

	f.HandleMessage(ctx, "user1", "/newhabit")
	f.HandleMessage(ctx, "user1", "/start")
	f.HandleMessage(ctx, "user1", "/help")
	if state, ok := states.Get("user1"); !ok || state.Phase() != PhaseAwaitingHabitName {
		t.Errorf("expected informational commands to leave the dialogue in place, got %v (ok=%v)", state, ok)
	}
}

func TestUnknownTextWithoutDialogue(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFlow(t)

	reply := f.HandleMessage(ctx, "user1", "hello there")
	if reply != msgUnknownCommand {
		t.Errorf("expected unknown-command reply, got %q", reply)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	f, st, _ := newTestFlow(t)

	if _, err := st.CreateHabit("user1", "Exercise", ""); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	// user2 starting a dialogue does not disturb user1's data or state.
	f.HandleMessage(ctx, "user2", "/newhabit")
	reply := f.HandleMessage(ctx, "user1", "/myhabits")
	if !strings.Contains(reply, "Exercise") {
		t.Errorf("expected user1's listing, got %q", reply)
	}
	reply = f.HandleMessage(ctx, "user2", "/myhabits")
	if reply != msgNoHabitsYet {
		t.Errorf("expected empty listing for user2, got %q", reply)
	}
}

type stubMotivator struct {
	line string
	err  error
}

func (m stubMotivator) MotivationLine(ctx context.Context, habitName string) (string, error) {
	return m.line, m.err
}

func TestCompletionWithMotivator(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	f := NewHabitFlowWithMotivator(st, NewMemoryStateTable(), stubMotivator{line: "Keep it up!"})

	if _, err := st.CreateHabit("user1", "Exercise", ""); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	f.HandleMessage(ctx, "user1", "/complete")
	reply := f.HandleMessage(ctx, "user1", "1")
	if !strings.Contains(reply, msgHabitCompleted) || !strings.Contains(reply, "Keep it up!") {
		t.Errorf("expected confirmation with motivation line, got %q", reply)
	}
}

func TestCompletionWithFailingMotivator(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	f := NewHabitFlowWithMotivator(st, NewMemoryStateTable(), stubMotivator{err: errors.New("api down")})

	if _, err := st.CreateHabit("user1", "Exercise", ""); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	f.HandleMessage(ctx, "user1", "/complete")
	reply := f.HandleMessage(ctx, "user1", "1")
	if reply != msgHabitCompleted {
		t.Errorf("expected plain confirmation when the motivator fails, got %q", reply)
	}
}
