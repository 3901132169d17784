package alerting

import (
	"fmt"
	"time"
)

// ConditionLogic combines the time and threshold conditions of a trigger
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "and"
	LogicOr  ConditionLogic = "or"
)

// TimeConditionSpec is a cron-derived recurring schedule condition
type TimeConditionSpec struct {
	Enabled  bool         `json:"enabled" yaml:"enabled"`
	Schedule ScheduleSpec `json:"schedule" yaml:"schedule"`
}

// ThresholdConditionSpec wraps a threshold rule as a trigger condition
type ThresholdConditionSpec struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Spec    ThresholdSpec `json:"spec" yaml:"spec"`
}

// TriggerSpec is the canonical condition tree of one alert
type TriggerSpec struct {
	ID           string                 `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Logic        ConditionLogic         `json:"logic" yaml:"logic"`
	Time         TimeConditionSpec      `json:"time" yaml:"time"`
	Threshold    ThresholdConditionSpec `json:"threshold" yaml:"threshold"`
	Template     string                 `json:"template,omitempty" yaml:"template,omitempty"`
	Placeholders map[string]string      `json:"placeholders,omitempty" yaml:"placeholders,omitempty"`
}

// Validate checks the trigger's structural invariants
func (t *TriggerSpec) Validate() error {
	if t.Logic != LogicAnd && t.Logic != LogicOr {
		return fmt.Errorf("logic must be %q or %q", LogicAnd, LogicOr)
	}
	if t.Time.Enabled {
		if err := t.Time.Schedule.Validate(); err != nil {
			return err
		}
	}
	if t.Threshold.Enabled {
		if err := t.Threshold.Spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TriggerOutcome is the composed pass/fail of one alert evaluation
type TriggerOutcome struct {
	Fired bool `json:"fired"`

	// Inert marks a trigger with no enabled conditions: it never fires,
	// and the caller decides whether that is a configuration problem
	Inert bool `json:"inert,omitempty"`

	TimeSatisfied      bool `json:"time_satisfied"`
	ThresholdSatisfied bool `json:"threshold_satisfied"`
}

// ComposeTrigger combines the two conditions under AND/OR logic. A disabled
// condition is removed from the conjunction rather than forcing failure,
// so under AND it is vacuously true; under OR only enabled conditions can
// fire the trigger.
func ComposeTrigger(logic ConditionLogic, timeEnabled, timeOK, thresholdEnabled, thresholdOK bool) TriggerOutcome {
	outcome := TriggerOutcome{
		TimeSatisfied:      timeEnabled && timeOK,
		ThresholdSatisfied: thresholdEnabled && thresholdOK,
	}

	if !timeEnabled && !thresholdEnabled {
		outcome.Inert = true
		return outcome
	}

	switch logic {
	case LogicOr:
		outcome.Fired = (timeEnabled && timeOK) || (thresholdEnabled && thresholdOK)
	default:
		// AND, with disabled conditions vacuously true
		outcome.Fired = (!timeEnabled || timeOK) && (!thresholdEnabled || thresholdOK)
	}

	return outcome
}

// SatisfiedAt reports whether the time condition holds during the minute
// containing t. A disabled condition reports false; composition decides
// how that participates in the trigger.
func (tc TimeConditionSpec) SatisfiedAt(t time.Time) bool {
	if !tc.Enabled {
		return false
	}
	return tc.Schedule.MatchesMinute(t)
}
