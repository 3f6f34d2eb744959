package ir

import "encoding/json"

// ErrorKind classifies a failed AppResult. It is not part of the wire
// shape; callers see only success/data/error, logs and metrics see the kind.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindParamValidation ErrorKind = "param_validation"
	KindUnknownAction   ErrorKind = "unknown_action"
	KindConditionFailed ErrorKind = "condition_failed"
	KindExplicitError   ErrorKind = "explicit_error"
	KindEvalError       ErrorKind = "eval_error"
	KindResourceLimit   ErrorKind = "resource_limit"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInternal        ErrorKind = "internal"
)

// AppResult is the terminal value of one action call.
type AppResult struct {
	Success bool
	Data    IRObject
	Error   string
	Kind    ErrorKind
}

// Succeeded builds a successful result. A nil data object becomes {}.
func Succeeded(data IRObject) AppResult {
	if data == nil {
		data = IRObject{}
	}
	return AppResult{Success: true, Data: data}
}

// Failed builds a failed result of the given kind.
func Failed(kind ErrorKind, message string) AppResult {
	return AppResult{Success: false, Data: IRObject{}, Error: message, Kind: kind}
}

// Outcome names the terminal state for logs and metrics.
func (r AppResult) Outcome() string {
	if r.Success {
		return "success"
	}
	if r.Kind == KindNone {
		return string(KindInternal)
	}
	return string(r.Kind)
}

// ToObject returns the {success, data, error} wire object.
func (r AppResult) ToObject() IRObject {
	data := r.Data
	if data == nil {
		data = IRObject{}
	}
	var errVal IRValue = IRNull{}
	if !r.Success {
		errVal = IRString(r.Error)
	}
	return IRObject{
		"success": IRBool(r.Success),
		"data":    data,
		"error":   errVal,
	}
}

// MarshalJSON implements json.Marshaler. error is null on success.
func (r AppResult) MarshalJSON() ([]byte, error) {
	return r.ToObject().MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *AppResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Success bool     `json:"success"`
		Data    IRObject `json:"data"`
		Error   *string  `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = AppResult{Success: wire.Success, Data: wire.Data}
	if r.Data == nil {
		r.Data = IRObject{}
	}
	if wire.Error != nil {
		r.Error = *wire.Error
	}
	return nil
}

// Observation is a notification emitted by a Notify block for another
// agent. Seq orders observations across one app instance.
type Observation struct {
	ToAgent  string   `json:"agent_id"`
	Message  string   `json:"message"`
	Data     IRObject `json:"data"`
	Priority Priority `json:"priority"`
	Seq      int64    `json:"seq"`
}

// ToObject returns the observation as a value object.
func (o Observation) ToObject() IRObject {
	data := o.Data
	if data == nil {
		data = IRObject{}
	}
	return IRObject{
		"agent_id": IRString(o.ToAgent),
		"message":  IRString(o.Message),
		"data":     data,
		"priority": IRString(o.Priority),
		"seq":      IRNumber(o.Seq),
	}
}
