package alert

import (
	"errors"
	"fmt"

	"stockwatch/internal/model"
)

// ErrInvalidDefinition wraps every validation failure so the management
// API can map it to a 400-class response.
var ErrInvalidDefinition = errors.New("invalid alert definition")

var validConditions = map[model.Condition]bool{
	model.CondAbove:        true,
	model.CondBelow:        true,
	model.CondEquals:       true,
	model.CondCrossesAbove: true,
	model.CondCrossesBelow: true,
}

var validIndicators = map[model.IndicatorType]bool{
	model.IndicatorRSI:       true,
	model.IndicatorSMA:       true,
	model.IndicatorEMA:       true,
	model.IndicatorMACD:      true,
	model.IndicatorBollinger: true,
}

// Validate rejects malformed definitions at creation time. The engine
// must never have to defend against these at evaluation time, though the
// scheduler still skips (and reports) an invalid definition it meets.
func Validate(a *model.AlertDefinition) error {
	if a.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidDefinition)
	}
	if a.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidDefinition)
	}
	if !validConditions[a.Condition] {
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidDefinition, a.Condition)
	}
	if a.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidDefinition)
	}

	switch a.Type {
	case model.AlertPrice, model.AlertVolume:
		if a.Indicator != "" {
			return fmt.Errorf("%w: indicator type is only valid for technical alerts", ErrInvalidDefinition)
		}
		if a.TargetValue <= 0 {
			return fmt.Errorf("%w: %s target must be positive", ErrInvalidDefinition, a.Type)
		}
	case model.AlertChange:
		if a.Indicator != "" {
			return fmt.Errorf("%w: indicator type is only valid for technical alerts", ErrInvalidDefinition)
		}
	case model.AlertTechnical:
		if a.Indicator == "" {
			return fmt.Errorf("%w: technical alert requires an indicator type", ErrInvalidDefinition)
		}
		if !validIndicators[a.Indicator] {
			return fmt.Errorf("%w: unknown indicator type %q", ErrInvalidDefinition, a.Indicator)
		}
	default:
		return fmt.Errorf("%w: unknown alert type %q", ErrInvalidDefinition, a.Type)
	}
	return nil
}
