package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPlayer() PlayerPosition {
	return PlayerPosition{Id: "p1", Number: 9, Position: "FW", X: 50, Y: 50}
}

func TestValidatePlayer(t *testing.T) {
	tcases := []struct {
		name   string
		mutate func(p *PlayerPosition)
		err    bool
	}{
		{name: "valid player", mutate: func(p *PlayerPosition) {}},
		{name: "corner of the pitch", mutate: func(p *PlayerPosition) { p.X, p.Y = 0, 100 }},
		{name: "negative x", mutate: func(p *PlayerPosition) { p.X = -1 }, err: true},
		{name: "y above range", mutate: func(p *PlayerPosition) { p.Y = 100.5 }, err: true},
		{name: "shirt number zero", mutate: func(p *PlayerPosition) { p.Number = 0 }, err: true},
		{name: "shirt number 100", mutate: func(p *PlayerPosition) { p.Number = 100 }, err: true},
		{name: "empty position", mutate: func(p *PlayerPosition) { p.Position = "" }, err: true},
		{name: "empty id", mutate: func(p *PlayerPosition) { p.Id = "" }, err: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPlayer()
			tc.mutate(&p)
			err := ValidatePlayer(p)
			if tc.err {
				assert.ErrorIs(t, err, ErrValidation, "expected validation error for %+v", p)
				return
			}
			assert.NoError(t, err, "expected player %+v to be valid", p)
		})
	}
}

func TestValidatePlayer_CoordinatesAreNotClamped(t *testing.T) {
	p := validPlayer()
	p.X = -1

	err := ValidatePlayer(p)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "x: failed gte=0", "expected error to name the offending field")
	assert.Equal(t, float64(-1), p.X, "expected coordinate to be left untouched")
}

func TestValidateFormation(t *testing.T) {
	t.Run("empty formation", func(t *testing.T) {
		assert.NoError(t, ValidateFormation(Formation{Name: "4-4-2"}))
	})

	t.Run("missing name", func(t *testing.T) {
		assert.ErrorIs(t, ValidateFormation(Formation{}), ErrValidation)
	})

	t.Run("invalid nested player", func(t *testing.T) {
		p := validPlayer()
		p.Y = 101
		err := ValidateFormation(Formation{Name: "4-3-3", Players: []PlayerPosition{p}})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "players[0].y")
	})

	t.Run("duplicate player ids", func(t *testing.T) {
		err := ValidateFormation(Formation{Name: "4-3-3", Players: []PlayerPosition{validPlayer(), validPlayer()}})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("invalid nested instruction", func(t *testing.T) {
		err := ValidateFormation(Formation{
			Name:    "4-3-3",
			Tactics: []TacticalInstruction{{Id: "t1", Type: "zonal", Description: "hold", Players: []string{"p1"}}},
		})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestValidateInstruction(t *testing.T) {
	tcases := []struct {
		name string
		ti   TacticalInstruction
		err  bool
	}{
		{
			name: "pressing instruction",
			ti:   TacticalInstruction{Id: "t1", Type: InstructionPressing, Description: "press the full back", Players: []string{"p7", "p9"}},
		},
		{
			name: "unknown type",
			ti:   TacticalInstruction{Id: "t1", Type: "zonal", Description: "hold", Players: []string{"p1"}},
			err:  true,
		},
		{
			name: "no players",
			ti:   TacticalInstruction{Id: "t1", Type: InstructionMarking, Description: "man mark"},
			err:  true,
		},
		{
			name: "blank player id",
			ti:   TacticalInstruction{Id: "t1", Type: InstructionMarking, Description: "man mark", Players: []string{""}},
			err:  true,
		},
		{
			name: "empty description",
			ti:   TacticalInstruction{Id: "t1", Type: InstructionMovement, Players: []string{"p1"}},
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInstruction(tc.ti)
			if tc.err {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAnalysis(t *testing.T) {
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	assert.NoError(t, ValidateAnalysis(Analysis{Title: "first half"}))
	assert.ErrorIs(t, ValidateAnalysis(Analysis{}), ErrValidation, "expected empty title to fail")
	assert.ErrorIs(t, ValidateAnalysis(Analysis{Title: string(long)}), ErrValidation, "expected long title to fail")
	assert.ErrorIs(t, ValidateAnalysis(Analysis{Title: "ok", Tags: []string{""}}), ErrValidation, "expected empty tag to fail")
}

func TestValidateTags(t *testing.T) {
	assert.NoError(t, ValidateTags([]string{"pressing"}))
	assert.ErrorIs(t, ValidateTags(nil), ErrValidation)
	assert.ErrorIs(t, ValidateTags([]string{"ok", ""}), ErrValidation)
}

func TestValidateChatAndDrawing(t *testing.T) {
	assert.NoError(t, ValidateChat(ChatMessage{Text: "switch to a back three"}))
	assert.ErrorIs(t, ValidateChat(ChatMessage{Text: "   "}), ErrValidation)

	assert.NoError(t, ValidateDrawing(json.RawMessage(`{"points":[[1,2],[3,4]]}`)))
	assert.ErrorIs(t, ValidateDrawing(nil), ErrValidation)
	assert.ErrorIs(t, ValidateDrawing(json.RawMessage(`{"points":`)), ErrValidation)
}
