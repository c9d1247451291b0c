package wizard

import (
	"encoding/json"
	"fmt"
)

// ActionSubmit is the action type the HTTP layer handles itself: it posts the
// reviewed payload to the remote API and then feeds the Accepted action back.
const ActionSubmit = "submit"

// envelope is the wire and storage form of a step
type envelope struct {
	Step string          `json:"step"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encodeStep(name string, step any) ([]byte, error) {
	data, err := json.Marshal(step)
	if err != nil {
		return nil, fmt.Errorf("marshal step: %w", err)
	}
	return json.Marshal(envelope{Step: name, Data: data})
}

func decodeInto[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// EncodeOrder serialises an order step
func EncodeOrder(s OrderStep) ([]byte, error) {
	return encodeStep(s.Name(), s)
}

// DecodeOrder restores an order step written by EncodeOrder
func DecodeOrder(b []byte) (OrderStep, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode order wizard: %w", err)
	}

	var (
		step OrderStep
		err  error
	)
	switch env.Step {
	case SelectProduct{}.Name():
		step = SelectProduct{}
	case SelectMeasurement{}.Name():
		step, err = decodeInto[SelectMeasurement](env.Data)
	case OrderDetails{}.Name():
		step, err = decodeInto[OrderDetails](env.Data)
	case OrderReview{}.Name():
		step, err = decodeInto[OrderReview](env.Data)
	case OrderSubmitted{}.Name():
		step, err = decodeInto[OrderSubmitted](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, env.Step)
	}
	if err != nil {
		return nil, fmt.Errorf("decode order wizard: %w", err)
	}
	return step, nil
}

// EncodeMeasurement serialises a measurement step
func EncodeMeasurement(s MeasurementStep) ([]byte, error) {
	return encodeStep(s.Name(), s)
}

// DecodeMeasurement restores a measurement step written by EncodeMeasurement
func DecodeMeasurement(b []byte) (MeasurementStep, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode measurement wizard: %w", err)
	}

	var (
		step MeasurementStep
		err  error
	)
	switch env.Step {
	case EnterSubject{}.Name():
		step = EnterSubject{}
	case EnterBody{}.Name():
		step, err = decodeInto[EnterBody](env.Data)
	case MeasurementReview{}.Name():
		step, err = decodeInto[MeasurementReview](env.Data)
	case MeasurementSubmitted{}.Name():
		step, err = decodeInto[MeasurementSubmitted](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, env.Step)
	}
	if err != nil {
		return nil, fmt.Errorf("decode measurement wizard: %w", err)
	}
	return step, nil
}

// ActionType returns the "type" field of a JSON action
func ActionType(b []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return "", fmt.Errorf("decode action: %w", err)
	}
	return head.Type, nil
}

// DecodeOrderAction parses a client-sent order action
func DecodeOrderAction(b []byte) (OrderAction, error) {
	t, err := ActionType(b)
	if err != nil {
		return nil, err
	}

	var action OrderAction
	switch t {
	case "choose_product":
		action, err = decodeInto[ChooseProduct](b)
	case "choose_measurement":
		action, err = decodeInto[ChooseMeasurement](b)
	case "set_details":
		action, err = decodeInto[SetOrderDetails](b)
	case "back":
		action = OrderBack{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode action %s: %w", t, err)
	}
	return action, nil
}

// DecodeMeasurementAction parses a client-sent measurement action
func DecodeMeasurementAction(b []byte) (MeasurementAction, error) {
	t, err := ActionType(b)
	if err != nil {
		return nil, err
	}

	var action MeasurementAction
	switch t {
	case "set_subject":
		action, err = decodeInto[SetSubject](b)
	case "set_body":
		action, err = decodeInto[SetBody](b)
	case "back":
		action = MeasurementBack{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode action %s: %w", t, err)
	}
	return action, nil
}
