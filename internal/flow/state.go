// Package flow implements the per-user habit dialogue state machine.
package flow

// Phase identifies a dialogue phase within a multi-step flow.
type Phase string

// Phase constants for the habit dialogue.
const (
	PhaseAwaitingHabitName         Phase = "awaiting_habit_name"
	PhaseAwaitingHabitDescription  Phase = "awaiting_habit_description"
	PhaseAwaitingCompletionID      Phase = "awaiting_completion_id"
	PhaseAwaitingDeletionID        Phase = "awaiting_deletion_id"
	PhaseAwaitingDescriptionTarget Phase = "awaiting_description_target_id"
	PhaseAwaitingDescriptionText   Phase = "awaiting_description_text"
)

// ConversationState is the closed set of dialogue states. Each variant carries
// exactly the data its phase needs, so a phase can never observe fields that
// belong to a different step.
type ConversationState interface {
	Phase() Phase
}

// AwaitingHabitName waits for the name of a habit being created.
type AwaitingHabitName struct{}

func (AwaitingHabitName) Phase() Phase { return PhaseAwaitingHabitName }

// AwaitingHabitDescription waits for the description of a habit being created,
// carrying the name collected in the previous step.
type AwaitingHabitDescription struct {
	Name string
}

func (AwaitingHabitDescription) Phase() Phase { return PhaseAwaitingHabitDescription }

// AwaitingCompletionID waits for the id of the habit to mark as done.
type AwaitingCompletionID struct{}

func (AwaitingCompletionID) Phase() Phase { return PhaseAwaitingCompletionID }

// AwaitingDeletionID waits for the id of the habit to delete.
type AwaitingDeletionID struct{}

func (AwaitingDeletionID) Phase() Phase { return PhaseAwaitingDeletionID }

// AwaitingDescriptionTargetID waits for the id of the habit whose description
// is being edited.
type AwaitingDescriptionTargetID struct{}

func (AwaitingDescriptionTargetID) Phase() Phase { return PhaseAwaitingDescriptionTarget }

// AwaitingDescriptionText waits for the new description text, carrying the
// habit id resolved in the previous step.
type AwaitingDescriptionText struct {
	HabitID int64
}

func (AwaitingDescriptionText) Phase() Phase { return PhaseAwaitingDescriptionText }
