package types

const (
	InstructionMovement = "movement"
	InstructionPressing = "pressing"
	InstructionMarking  = "marking"
)

// PlayerPosition places a player on a normalized 0..100 pitch.
type PlayerPosition struct {
	Id       string  `json:"id" validate:"required"`
	Number   int     `json:"number" validate:"gte=1,lte=99"`
	Position string  `json:"position" validate:"required"`
	X        float64 `json:"x" validate:"gte=0,lte=100"`
	Y        float64 `json:"y" validate:"gte=0,lte=100"`
}

type TacticalInstruction struct {
	Id          string   `json:"id" validate:"required"`
	Type        string   `json:"type" validate:"oneof=movement pressing marking"`
	Description string   `json:"description" validate:"required"`
	Players     []string `json:"players" validate:"required,min=1,dive,required"`
}

type Formation struct {
	Name    string                `json:"name" validate:"required,max=100"`
	Players []PlayerPosition      `json:"players" validate:"unique=Id,dive"`
	Tactics []TacticalInstruction `json:"tactics" validate:"unique=Id,dive"`
	Version int                   `json:"version"`
}

// Clone returns a deep copy so a broadcast never shares slices with
// the room's live state.
func (f Formation) Clone() Formation {
	out := f
	out.Players = make([]PlayerPosition, len(f.Players))
	copy(out.Players, f.Players)

	out.Tactics = make([]TacticalInstruction, len(f.Tactics))
	for i, t := range f.Tactics {
		t.Players = append([]string(nil), t.Players...)
		out.Tactics[i] = t
	}

	return out
}

// FindPlayer returns the index of the player with the given id or -1.
func (f Formation) FindPlayer(id string) int {
	for i, p := range f.Players {
		if p.Id == id {
			return i
		}
	}

	return -1
}

// UpsertInstruction replaces the instruction with the same id or
// appends it.
func (f Formation) UpsertInstruction(ti TacticalInstruction) Formation {
	out := f.Clone()
	for i, t := range out.Tactics {
		if t.Id == ti.Id {
			out.Tactics[i] = ti
			return out
		}
	}

	out.Tactics = append(out.Tactics, ti)
	return out
}
