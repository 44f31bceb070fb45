package ecs

// UpdateFrame is handed to every system for one stage of one tick.
type UpdateFrame struct {
	DeltaTime float64
	Tick      uint64
	Stage     Stage
	Commands  *Commands
	Storage   *Storage
}

func newUpdateFrame(dt float64, tick uint64, storage *Storage) *UpdateFrame {
	return &UpdateFrame{
		DeltaTime: dt,
		Tick:      tick,
		Commands:  newCommands(),
		Storage:   storage,
	}
}
