package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their wire names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PlayerMovement is a single coordinate change for one player.
type PlayerMovement struct {
	PlayerId string  `json:"player_id" validate:"required"`
	X        float64 `json:"x" validate:"gte=0,lte=100"`
	Y        float64 `json:"y" validate:"gte=0,lte=100"`
}

func ValidateFormation(f Formation) error {
	return validateStruct(f)
}

func ValidatePlayer(p PlayerPosition) error {
	return validateStruct(p)
}

func ValidateMovement(m PlayerMovement) error {
	return validateStruct(m)
}

func ValidateInstruction(ti TacticalInstruction) error {
	return validateStruct(ti)
}

// ValidateAnalysis expects tags to be normalized already.
func ValidateAnalysis(a Analysis) error {
	return validateStruct(a)
}

// ValidateTags checks an incremental tag addition after normalization.
func ValidateTags(tags []string) error {
	if len(tags) == 0 {
		return fmt.Errorf("%w: tags: at least one tag is required", ErrValidation)
	}

	if err := validate.Var(tags, "dive,required,max=50"); err != nil {
		return fmt.Errorf("%w: tags: %s", ErrValidation, describe(err))
	}

	return nil
}

func ValidateChat(m ChatMessage) error {
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: text: must not be blank", ErrValidation)
	}
	return validateStruct(m)
}

func ValidateDrawing(data json.RawMessage) error {
	if len(data) == 0 || !json.Valid(data) {
		return fmt.Errorf("%w: data: must be a JSON document", ErrValidation)
	}
	return nil
}

// ValidateRequest checks the validate tags of an arbitrary struct.
func ValidateRequest(v any) error {
	return validateStruct(v)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}

	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		// drop the top level type name
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		if field == "" {
			msgs = append(msgs, "failed "+rule)
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, rule))
	}

	return strings.Join(msgs, "; ")
}
