// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapt

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// opportunityAlias avoids recursing into UnmarshalJSON.
type opportunityAlias struct {
	Type             OpportunityType `json:"type"`
	Priority         Priority        `json:"priority"`
	Confidence       float64         `json:"confidence"`
	Description      string          `json:"description"`
	Payload          json.RawMessage `json:"payload"`
	TriggerCondition string          `json:"trigger_condition"`
	RollbackPlan     string          `json:"rollback_plan"`
}

// UnmarshalJSON decodes the payload into the concrete variant selected by the
// opportunity type, so persisted adaptations round-trip their payloads.
func (o *Opportunity) UnmarshalJSON(data []byte) error {
	var alias opportunityAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	o.Type = alias.Type
	o.Priority = alias.Priority
	o.Confidence = alias.Confidence
	o.Description = alias.Description
	o.TriggerCondition = alias.TriggerCondition
	o.RollbackPlan = alias.RollbackPlan

	if len(alias.Payload) == 0 || string(alias.Payload) == "null" {
		o.Payload = nil
		return nil
	}

	payload, err := decodePayload(alias.Type, alias.Payload)
	if err != nil {
		return err
	}
	o.Payload = payload
	return nil
}

func decodePayload(t OpportunityType, data json.RawMessage) (Payload, error) {
	switch t {
	case TypeModelSwitch:
		var p ModelSwitchPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeContextOptimization:
		var p ContextOptimizationPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeEnergyAdaptation:
		var p EnergyAdaptationPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeTrendResponse:
		var p TrendResponsePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeBehaviorAdaptation:
		var p BehaviorAdaptationPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown opportunity type %q", t)
	}
}
