package alerting

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SpecParser handles parsing alert definitions from different formats
type SpecParser struct{}

// NewSpecParser creates a new alert definition parser
func NewSpecParser() *SpecParser {
	return &SpecParser{}
}

// ParseFromYAML parses an alert definition from YAML
func (sp *SpecParser) ParseFromYAML(yamlData []byte) (*TriggerSpec, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %v", err)
	}
	return sp.parseFromMap(raw)
}

// ParseFromJSON parses an alert definition from JSON
func (sp *SpecParser) ParseFromJSON(jsonData []byte) (*TriggerSpec, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %v", err)
	}
	return sp.parseFromMap(raw)
}

func (sp *SpecParser) parseFromMap(raw map[string]interface{}) (*TriggerSpec, error) {
	spec := &TriggerSpec{
		Logic: LogicAnd,
	}

	if id, ok := raw["id"].(string); ok {
		spec.ID = id
	}
	if name, ok := raw["name"].(string); ok {
		spec.Name = name
	}
	if logic, ok := raw["logic"].(string); ok {
		switch ConditionLogic(strings.ToLower(logic)) {
		case LogicAnd, LogicOr:
			spec.Logic = ConditionLogic(strings.ToLower(logic))
		default:
			return nil, fmt.Errorf("unsupported logic: %s", logic)
		}
	}
	if template, ok := raw["template"].(string); ok {
		spec.Template = template
	}

	if placeholders, ok := raw["placeholders"].(map[string]interface{}); ok {
		spec.Placeholders = make(map[string]string, len(placeholders))
		for name, value := range placeholders {
			spec.Placeholders[name] = fmt.Sprint(value)
		}
	}

	if timeData, ok := raw["time"].(map[string]interface{}); ok {
		cond, err := sp.parseTimeCondition(timeData)
		if err != nil {
			return nil, fmt.Errorf("time condition: %v", err)
		}
		spec.Time = cond
	}

	if thresholdData, ok := raw["threshold"].(map[string]interface{}); ok {
		cond, err := sp.parseThresholdCondition(thresholdData)
		if err != nil {
			return nil, fmt.Errorf("threshold condition: %v", err)
		}
		spec.Threshold = cond
	}

	return spec, nil
}

func (sp *SpecParser) parseTimeCondition(raw map[string]interface{}) (TimeConditionSpec, error) {
	cond := TimeConditionSpec{
		Enabled:  true,
		Schedule: DefaultSchedule(),
	}

	if enabled, ok := raw["enabled"].(bool); ok {
		cond.Enabled = enabled
	}

	// A cron string is the persisted wire form; a structured schedule wins
	// when both are present
	if cron, ok := raw["cron"].(string); ok && cron != "" {
		cond.Schedule = DecodeCron(cron)
	}

	if scheduleData, ok := raw["schedule"].(map[string]interface{}); ok {
		schedule, err := sp.parseSchedule(scheduleData)
		if err != nil {
			return cond, err
		}
		cond.Schedule = schedule
	}

	return cond, nil
}

func (sp *SpecParser) parseSchedule(raw map[string]interface{}) (ScheduleSpec, error) {
	schedule := DefaultSchedule()

	if mode, ok := raw["mode"].(string); ok {
		switch ScheduleMode(mode) {
		case ScheduleHourly, ScheduleWeekly, ScheduleMonthly:
			schedule.Mode = ScheduleMode(mode)
		default:
			return schedule, fmt.Errorf("unsupported schedule mode: %s", mode)
		}
	}
	if clock, ok := raw["time"].(string); ok {
		schedule.Time = clock
	}
	if days, ok := raw["days_of_week"]; ok {
		schedule.DaysOfWeek = toIntList(days)
	}
	if days, ok := raw["days_of_month"]; ok {
		schedule.DaysOfMonth = toIntList(days)
	}
	if every, ok := toInt(raw["every_hours"]); ok {
		schedule.EveryHours = every
	}

	// Only the selector matching the mode is meaningful; clear the rest so
	// persisted defaults do not leak across modes
	switch schedule.Mode {
	case ScheduleHourly:
		schedule.DaysOfWeek = nil
		schedule.DaysOfMonth = nil
	case ScheduleMonthly:
		schedule.DaysOfWeek = nil
		schedule.EveryHours = 0
	default:
		schedule.DaysOfMonth = nil
		schedule.EveryHours = 0
		// The weekly invariant: an empty day set falls back to weekdays
		if len(schedule.DaysOfWeek) == 0 {
			schedule.DaysOfWeek = []int{1, 2, 3, 4, 5}
		}
	}

	return schedule, nil
}

func (sp *SpecParser) parseThresholdCondition(raw map[string]interface{}) (ThresholdConditionSpec, error) {
	cond := ThresholdConditionSpec{Enabled: true}

	if enabled, ok := raw["enabled"].(bool); ok {
		cond.Enabled = enabled
	}

	specData, ok := raw["spec"].(map[string]interface{})
	if !ok {
		// Flat form: the threshold fields sit directly on the condition
		specData = raw
	}

	// Thresholds persisted as numbers normalize to their string form
	if v, ok := specData["threshold"]; ok {
		if _, isString := v.(string); !isString {
			specData["threshold"] = fmt.Sprint(v)
		}
	}

	data, err := json.Marshal(specData)
	if err != nil {
		return cond, err
	}
	if err := json.Unmarshal(data, &cond.Spec); err != nil {
		return cond, err
	}

	return cond, nil
}

// SerializeToJSON serializes an alert definition to JSON
func (sp *SpecParser) SerializeToJSON(spec *TriggerSpec) ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// SerializeToYAML serializes an alert definition to YAML
func (sp *SpecParser) SerializeToYAML(spec *TriggerSpec) ([]byte, error) {
	return yaml.Marshal(spec)
}

func toIntList(value interface{}) []int {
	list, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []int
	for _, item := range list {
		if v, ok := toInt(item); ok {
			out = append(out, v)
		}
	}
	return out
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
