package wizard

import (
	"fmt"
	"sort"
	"strings"
)

// Required measurement keys, in centimetres
var requiredMeasurements = []string{"chest", "waist", "hip"}

const (
	minMeasurementCM = 1
	maxMeasurementCM = 300
)

var genders = map[string]bool{"male": true, "female": true, "other": true}

// Subject is the person being measured. UserID is set when an organization
// admin records measurements for one of their users.
type Subject struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
	UserID string `json:"user_id,omitempty"`
}

// MeasurementStep is one state of the measurement wizard. The concrete types
// are EnterSubject, EnterBody, MeasurementReview and MeasurementSubmitted.
type MeasurementStep interface {
	measurementStep()
	Name() string
}

type EnterSubject struct{}

type EnterBody struct {
	Subject Subject `json:"subject"`
}

type MeasurementReview struct {
	Subject Subject            `json:"subject"`
	Values  map[string]float64 `json:"values"`
}

type MeasurementSubmitted struct {
	MeasurementReview
	MeasurementID string `json:"measurement_id"`
}

func (EnterSubject) measurementStep()         {}
func (EnterBody) measurementStep()            {}
func (MeasurementReview) measurementStep()    {}
func (MeasurementSubmitted) measurementStep() {}

func (EnterSubject) Name() string         { return "subject" }
func (EnterBody) Name() string            { return "body" }
func (MeasurementReview) Name() string    { return "review" }
func (MeasurementSubmitted) Name() string { return "submitted" }

// Payload is the body posted to the remote API to store the measurements
func (r MeasurementReview) Payload() map[string]any {
	p := map[string]any{
		"name":         r.Subject.Name,
		"gender":       r.Subject.Gender,
		"measurements": r.Values,
	}
	if r.Subject.UserID != "" {
		p["user_id"] = r.Subject.UserID
	}
	return p
}

// MeasurementAction is an input to ReduceMeasurement
type MeasurementAction interface {
	measurementAction()
}

type SetSubject struct {
	Subject Subject `json:"subject"`
}

type SetBody struct {
	Values map[string]float64 `json:"values"`
}

type MeasurementBack struct{}

type MeasurementAccepted struct {
	MeasurementID string `json:"measurement_id"`
}

func (SetSubject) measurementAction()          {}
func (SetBody) measurementAction()             {}
func (MeasurementBack) measurementAction()     {}
func (MeasurementAccepted) measurementAction() {}

// NewMeasurement returns the first step
func NewMeasurement() MeasurementStep {
	return EnterSubject{}
}

// ReduceMeasurement computes the next step. It never mutates its input.
func ReduceMeasurement(step MeasurementStep, action MeasurementAction) (MeasurementStep, error) {
	if _, done := step.(MeasurementSubmitted); done {
		return step, ErrAlreadySubmitted
	}

	switch a := action.(type) {
	case SetSubject:
		switch step.(type) {
		case EnterSubject, EnterBody:
		default:
			return step, ErrInvalidTransition
		}
		subject, err := validateSubject(a.Subject)
		if err != nil {
			return step, err
		}
		return EnterBody{Subject: subject}, nil

	case SetBody:
		var subject Subject
		switch s := step.(type) {
		case EnterSubject:
			return step, ErrNoSubjectName
		case EnterBody:
			subject = s.Subject
		case MeasurementReview:
			subject = s.Subject
		default:
			return step, ErrInvalidTransition
		}
		values, err := validateValues(a.Values)
		if err != nil {
			return step, err
		}
		return MeasurementReview{Subject: subject, Values: values}, nil

	case MeasurementBack:
		switch s := step.(type) {
		case EnterSubject:
			return s, nil
		case EnterBody:
			return EnterSubject{}, nil
		case MeasurementReview:
			return EnterBody{Subject: s.Subject}, nil
		}
		return step, ErrInvalidTransition

	case MeasurementAccepted:
		review, ok := step.(MeasurementReview)
		if !ok {
			return step, ErrInvalidTransition
		}
		return MeasurementSubmitted{MeasurementReview: review, MeasurementID: a.MeasurementID}, nil
	}

	return step, fmt.Errorf("%w: %T", ErrUnknownAction, action)
}

func validateSubject(s Subject) (Subject, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Gender = strings.ToLower(strings.TrimSpace(s.Gender))
	s.UserID = strings.TrimSpace(s.UserID)
	if s.Name == "" {
		return s, ErrNoSubjectName
	}
	if !genders[s.Gender] {
		return s, ErrInvalidGender
	}
	return s, nil
}

// validateValues returns a normalised copy with lower-case keys
func validateValues(in map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if v < minMeasurementCM || v > maxMeasurementCM {
			return nil, fmt.Errorf("%w: %s=%g", ErrMeasurementRange, key, v)
		}
		out[key] = v
	}

	var missing []string
	for _, k := range requiredMeasurements {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing %s", ErrMissingMeasurement, strings.Join(missing, ", "))
	}
	return out, nil
}
