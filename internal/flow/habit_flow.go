package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/HabitPipe/internal/models"
	"github.com/BTreeMap/HabitPipe/internal/store"
)

// skipToken is the reply that means "no description" during creation and
// "clear the description" during an edit.
const skipToken = "-"

// User-facing reply strings.
const (
	msgWelcome = "🎯 Welcome to the habit tracker!\n\n" +
		"I will help you build useful habits!\n" +
		"Send /help to see all commands\n\n" +
		"Start by creating your first habit!"

	msgHelp = "🎯 Welcome to the habit tracker!\n\n" +
		"With this bot you can:\n" +
		"📝 Create habits with descriptions\n" +
		"📋 View your habits\n" +
		"✅ Mark habits as done\n" +
		"🗑️ Delete habits\n" +
		"📊 Track your progress\n" +
		"✏️ Add or change descriptions\n\n" +
		"Available commands:\n" +
		"/newhabit - Create a new habit\n" +
		"/myhabits - Show my habits\n" +
		"/complete - Mark a habit as done\n" +
		"/deletehabit - Delete a habit\n" +
		"/adddescription - Add a description to a habit\n" +
		"/stats - Show statistics\n" +
		"/help - Help"

	msgUnknownCommand     = "Unknown command. Use /help to see the available commands."
	msgGenericFailure     = "❌ Something went wrong. Please try again."
	msgEnterHabitName     = "📝 Enter a name for your new habit:"
	msgEmptyHabitName     = "❌ The habit name cannot be empty. Enter a name for your new habit:"
	msgHabitNameTooLong   = "❌ That name is too long. Enter a shorter name for your habit:"
	msgDescriptionTooLong = "❌ That description is too long. Try a shorter one (or '-' to skip):"
	msgNoHabitsYet        = "📭 You don't have any habits yet. Create your first one with /newhabit"
	msgNoHabitsToDo       = "📭 You don't have any habits to mark as done"
	msgNoHabitsDelete     = "📭 You don't have any habits to delete"
	msgNoHabitsDesc       = "📭 You don't have any habits to describe"
	msgHabitCompleted     = "🎉 Habit marked as done for today!"
	msgHabitDeleted       = "🗑️ Habit deleted!"
	msgHabitNotFound      = "❌ Couldn't find a habit with that ID"
	msgEnterNumber        = "❌ Please enter a number (the habit ID)"
	msgNoStatsYet         = "📊 You don't have any habits to build statistics from yet"
	msgDescRemoved        = "✅ Description removed!"
	msgDescUpdated        = "✅ Description updated!"
	msgDescUpdateFail     = "❌ Couldn't update the description"
	msgChooserComplete    = "✅ Mark a habit as done:"
	msgChooserDelete      = "🗑️ Delete a habit:"
	msgChooserDescribe    = "✏️ Add a description to a habit:"
)

// Motivator generates an optional encouragement line appended to completion
// confirmations. Implementations are best-effort; errors only suppress the line.
type Motivator interface {
	MotivationLine(ctx context.Context, habitName string) (string, error)
}

// HabitFlow is the dialogue engine: it interprets each inbound text message
// against the user's current dialogue state, mutates the habit store, and
// produces the reply text.
type HabitFlow struct {
	store     store.Store
	states    StateTable
	motivator Motivator
}

// NewHabitFlow creates a dialogue engine over the given store and state table.
func NewHabitFlow(st store.Store, states StateTable) *HabitFlow {
	slog.Debug("HabitFlow created")
	return &HabitFlow{store: st, states: states}
}

// NewHabitFlowWithMotivator creates a dialogue engine that appends a generated
// encouragement line to completion confirmations.
func NewHabitFlowWithMotivator(st store.Store, states StateTable, m Motivator) *HabitFlow {
	slog.Debug("HabitFlow created with motivator", "hasMotivator", m != nil)
	return &HabitFlow{store: st, states: states, motivator: m}
}

// HandleMessage processes one inbound text message from a user and returns the
// reply. Recognized command tokens always take precedence over an in-progress
// dialogue, so a user can abandon a flow by issuing a new command. Store
// failures never escape: they resolve to a generic failure reply.
func (f *HabitFlow) HandleMessage(ctx context.Context, userID, text string) string {
	slog.Debug("HabitFlow handling message", "userID", userID, "body_length", len(text))
	if cmd, ok := ParseCommand(text); ok {
		return f.handleCommand(ctx, userID, cmd)
	}
	return f.handleDialogueInput(ctx, userID, text)
}

func (f *HabitFlow) handleCommand(ctx context.Context, userID string, cmd Command) string {
	slog.Debug("HabitFlow dispatching command", "userID", userID, "command", cmd)
	switch cmd {
	case CmdStart:
		return msgWelcome
	case CmdHelp:
		return msgHelp
	case CmdNewHabit:
		f.states.Set(userID, AwaitingHabitName{})
		return msgEnterHabitName
	case CmdMyHabits:
		return f.listHabits(userID)
	case CmdComplete:
		return f.askForTarget(userID, msgChooserComplete, msgNoHabitsToDo, AwaitingCompletionID{}, false)
	case CmdDeleteHabit:
		return f.askForTarget(userID, msgChooserDelete, msgNoHabitsDelete, AwaitingDeletionID{}, false)
	case CmdAddDescription:
		return f.askForTarget(userID, msgChooserDescribe, msgNoHabitsDesc, AwaitingDescriptionTargetID{}, true)
	case CmdStats:
		return f.showStats(userID)
	default:
		// ParseCommand only returns members of the closed set.
		return msgUnknownCommand
	}
}

// listHabits renders the full habit blocks for /myhabits.
func (f *HabitFlow) listHabits(userID string) string {
	habits, err := f.store.ListHabits(userID)
	if err != nil {
		slog.Error("HabitFlow listHabits store error", "error", err, "userID", userID)
		return msgGenericFailure
	}
	if len(habits) == 0 {
		return msgNoHabitsYet
	}
	return formatHabitBlocks(habits)
}

// askForTarget starts an id-collecting flow. The "no habits" case is a
// terminal reply: no phase is entered and any existing state is left alone.
func (f *HabitFlow) askForTarget(userID, header, emptyReply string, next ConversationState, markMissingDescription bool) string {
	habits, err := f.store.ListHabits(userID)
	if err != nil {
		slog.Error("HabitFlow askForTarget store error", "error", err, "userID", userID, "phase", next.Phase())
		return msgGenericFailure
	}
	if len(habits) == 0 {
		return emptyReply
	}
	f.states.Set(userID, next)
	return formatChooser(header, habits, markMissingDescription)
}

func (f *HabitFlow) showStats(userID string) string {
	stats, err := f.store.OwnerStats(userID)
	if err != nil {
		slog.Error("HabitFlow showStats store error", "error", err, "userID", userID)
		return msgGenericFailure
	}
	if stats == nil {
		return msgNoStatsYet
	}
	return FormatStats(*stats)
}

// handleDialogueInput feeds free text into the user's active dialogue phase.
func (f *HabitFlow) handleDialogueInput(ctx context.Context, userID, text string) string {
	state, ok := f.states.Get(userID)
	if !ok {
		return msgUnknownCommand
	}
	slog.Debug("HabitFlow continuing dialogue", "userID", userID, "phase", state.Phase())

	switch st := state.(type) {
	case AwaitingHabitName:
		return f.collectHabitName(userID, text)
	case AwaitingHabitDescription:
		return f.createHabit(userID, st.Name, text)
	case AwaitingCompletionID:
		return f.completeHabit(ctx, userID, text)
	case AwaitingDeletionID:
		return f.deleteHabit(userID, text)
	case AwaitingDescriptionTargetID:
		return f.resolveDescriptionTarget(userID, text)
	case AwaitingDescriptionText:
		return f.updateDescription(userID, st.HabitID, text)
	default:
		// Unreachable for states produced by this package.
		slog.Error("HabitFlow unknown dialogue state", "userID", userID, "phase", state.Phase())
		f.states.Clear(userID)
		return msgUnknownCommand
	}
}

func (f *HabitFlow) collectHabitName(userID, text string) string {
	// Invalid names re-prompt without leaving the phase.
	if strings.TrimSpace(text) == "" {
		return msgEmptyHabitName
	}
	if err := models.ValidateName(text); err != nil {
		return msgHabitNameTooLong
	}
	f.states.Set(userID, AwaitingHabitDescription{Name: text})
	return fmt.Sprintf("📝 Now enter a description for %q:\n(Send '-' to skip the description)", text)
}

// createHabit is a terminal step: the state is cleared whatever the store says.
func (f *HabitFlow) createHabit(userID, name, text string) string {
	description := text
	if text == skipToken {
		description = ""
	}
	if err := models.ValidateDescription(description); err != nil {
		// Stay in the phase so the user can retry with a shorter text.
		return msgDescriptionTooLong
	}
	f.states.Clear(userID)

	id, err := f.store.CreateHabit(userID, name, description)
	if err != nil {
		slog.Error("HabitFlow createHabit store error", "error", err, "userID", userID)
		return "❌ Something went wrong while creating the habit. Please try again."
	}
	slog.Info("HabitFlow habit created", "userID", userID, "habitID", id)

	if description == "" {
		return fmt.Sprintf("✅ Habit %q created!\nNo description added", name)
	}
	return fmt.Sprintf("✅ Habit %q created!\nDescription: %s", name, description)
}

// completeHabit is a terminal step: parse failures reply with the parse-error
// message and still clear the state (the user reissues /complete to retry).
func (f *HabitFlow) completeHabit(ctx context.Context, userID, text string) string {
	f.states.Clear(userID)

	habitID, err := parseHabitID(text)
	if err != nil {
		return msgEnterNumber
	}

	ok, err := f.store.RecordCompletion(habitID, userID)
	if err != nil {
		slog.Error("HabitFlow completeHabit store error", "error", err, "userID", userID, "habitID", habitID)
		return msgGenericFailure
	}
	if !ok {
		return msgHabitNotFound
	}
	slog.Info("HabitFlow completion recorded", "userID", userID, "habitID", habitID)

	reply := msgHabitCompleted
	if f.motivator != nil {
		if line := f.motivationLine(ctx, userID, habitID); line != "" {
			reply += "\n\n" + line
		}
	}
	return reply
}

// motivationLine asks the motivator for an encouragement line. Any failure
// along the way just suppresses the line.
func (f *HabitFlow) motivationLine(ctx context.Context, userID string, habitID int64) string {
	habit, err := f.store.GetHabit(habitID, userID)
	if err != nil || habit == nil {
		return ""
	}
	line, err := f.motivator.MotivationLine(ctx, habit.Name)
	if err != nil {
		slog.Warn("HabitFlow motivator failed", "error", err, "userID", userID, "habitID", habitID)
		return ""
	}
	return strings.TrimSpace(line)
}

func (f *HabitFlow) deleteHabit(userID, text string) string {
	f.states.Clear(userID)

	habitID, err := parseHabitID(text)
	if err != nil {
		return msgEnterNumber
	}

	ok, err := f.store.DeleteHabit(habitID, userID)
	if err != nil {
		slog.Error("HabitFlow deleteHabit store error", "error", err, "userID", userID, "habitID", habitID)
		return msgGenericFailure
	}
	if !ok {
		return msgHabitNotFound
	}
	slog.Info("HabitFlow habit deleted", "userID", userID, "habitID", habitID)
	return msgHabitDeleted
}

// resolveDescriptionTarget looks up the habit to edit. On success it advances
// to the text-collecting phase; every other outcome clears the state.
func (f *HabitFlow) resolveDescriptionTarget(userID, text string) string {
	habitID, err := parseHabitID(text)
	if err != nil {
		f.states.Clear(userID)
		return msgEnterNumber
	}

	habit, err := f.store.GetHabit(habitID, userID)
	if err != nil {
		slog.Error("HabitFlow resolveDescriptionTarget store error", "error", err, "userID", userID, "habitID", habitID)
		f.states.Clear(userID)
		return msgGenericFailure
	}
	if habit == nil {
		f.states.Clear(userID)
		return msgHabitNotFound
	}

	f.states.Set(userID, AwaitingDescriptionText{HabitID: habitID})
	if habit.Description != "" {
		return fmt.Sprintf("✏️ Current description of %q:\n%s\n\nEnter a new description (or '-' to clear it):",
			habit.Name, habit.Description)
	}
	return fmt.Sprintf("✏️ Enter a description for %q:\n(Send '-' to leave it empty)", habit.Name)
}

func (f *HabitFlow) updateDescription(userID string, habitID int64, text string) string {
	description := text
	if text == skipToken {
		description = ""
	}
	if err := models.ValidateDescription(description); err != nil {
		return msgDescriptionTooLong
	}
	f.states.Clear(userID)

	ok, err := f.store.UpdateDescription(habitID, userID, description)
	if err != nil {
		slog.Error("HabitFlow updateDescription store error", "error", err, "userID", userID, "habitID", habitID)
		return msgGenericFailure
	}
	if !ok {
		return msgDescUpdateFail
	}
	slog.Info("HabitFlow description updated", "userID", userID, "habitID", habitID, "cleared", description == "")
	if description == "" {
		return msgDescRemoved
	}
	return msgDescUpdated
}

func parseHabitID(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid habit id %q: %w", text, err)
	}
	return id, nil
}
