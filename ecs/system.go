package ecs

// System represents a behavior that operates on entities with specific components.
// User-defined systems should implement this interface and can include Query fields
// for accessing entities, as well as custom state fields that persist between frames.
type System interface {
	Execute(frame *UpdateFrame)
}

// Stage orders systems within a tick. Every stage's commands are flushed before
// the next stage starts.
type Stage int

const (
	// StageUpdate runs game logic.
	StageUpdate Stage = iota
	// StagePostUpdate runs after the Update stage's commands have been applied.
	StagePostUpdate

	stageCount
)

// String returns the string representation of a stage.
func (s Stage) String() string {
	switch s {
	case StageUpdate:
		return "Update"
	case StagePostUpdate:
		return "PostUpdate"
	default:
		return "Unknown"
	}
}
