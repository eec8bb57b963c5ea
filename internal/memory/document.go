package memory

import (
	"encoding/json"
	"fmt"
)

// Memory is the typed view of a session memory document.
type Memory struct {
	UserPrefs      *UserPrefs      `json:"user_prefs,omitempty"`
	ProjectContext *ProjectContext `json:"project_context,omitempty"`
	Decisions      []Decision      `json:"decisions,omitempty"`
	OpenQuestions  []string        `json:"open_questions,omitempty"`
	Facts          []string        `json:"facts,omitempty"`
}

// UserPrefs captures how the user wants to be answered.
type UserPrefs struct {
	Language *string  `json:"language,omitempty"`
	Tone     *string  `json:"tone,omitempty"`
	Format   *string  `json:"format,omitempty"`
	Other    []string `json:"other,omitempty"`
}

// ProjectContext captures what the user is working on.
type ProjectContext struct {
	AppName     *string  `json:"app_name,omitempty"`
	Stack       []string `json:"stack,omitempty"`
	CurrentGoal *string  `json:"current_goal,omitempty"`
	Notes       []string `json:"notes,omitempty"`
}

// Decision is a dated decision. Date is ISO formatted when known.
type Decision struct {
	Date     *string `json:"date,omitempty"`
	Decision string  `json:"decision"`
}

// Parse validates raw and decodes it into a Memory.
func Parse(raw string) (Memory, error) {
	if err := Check(raw); err != nil {
		return Memory{}, err
	}
	var m Memory
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Memory{}, fmt.Errorf("%w: %w", ErrInvalidMemory, err)
	}
	return m, nil
}

// Empty reports whether m carries no information.
func (m Memory) Empty() bool {
	return m.UserPrefs == nil && m.ProjectContext == nil &&
		len(m.Decisions) == 0 && len(m.OpenQuestions) == 0 && len(m.Facts) == 0
}
