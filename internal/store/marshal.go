package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/appsim/internal/ir"
)

// marshalObject converts IRObject to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalObject(obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT to IRObject.
func unmarshalObject(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}

// marshalResult stores the caller-facing result shape.
func marshalResult(res ir.AppResult) (string, error) {
	data, err := ir.MarshalCanonical(res.ToObject())
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// unmarshalResult parses a stored result. The error kind is not part of
// the stored JSON and is restored from the outcome column.
func unmarshalResult(data, outcome string) (ir.AppResult, error) {
	var res ir.AppResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return ir.AppResult{}, fmt.Errorf("unmarshal result: %w", err)
	}
	if !res.Success {
		res.Kind = ir.ErrorKind(outcome)
	}
	return res, nil
}

// marshalObservations stores observations as a canonical JSON array.
func marshalObservations(obs []ir.Observation) (string, error) {
	arr := make(ir.IRArray, len(obs))
	for i, o := range obs {
		arr[i] = o.ToObject()
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal observations: %w", err)
	}
	return string(data), nil
}

// unmarshalObservations parses a stored observation array. Returns an
// empty slice, not nil, for no observations.
func unmarshalObservations(data string) ([]ir.Observation, error) {
	obs := []ir.Observation{}
	if data == "" || data == "[]" {
		return obs, nil
	}
	if err := json.Unmarshal([]byte(data), &obs); err != nil {
		return nil, fmt.Errorf("unmarshal observations: %w", err)
	}
	return obs, nil
}
