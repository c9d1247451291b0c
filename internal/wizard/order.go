package wizard

import (
	"fmt"
	"strings"
)

// MaxQuantity bounds the number of garments in one order
const MaxQuantity = 100

// Product is the product picked in the first step
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MeasurementRef points at a stored measurement set
type MeasurementRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// OrderStep is one state of the order wizard. The concrete types are
// SelectProduct, SelectMeasurement, OrderDetails, OrderReview and
// OrderSubmitted.
type OrderStep interface {
	orderStep()
	Name() string
}

type SelectProduct struct{}

type SelectMeasurement struct {
	Product Product `json:"product"`
}

type OrderDetails struct {
	Product     Product        `json:"product"`
	Measurement MeasurementRef `json:"measurement"`
}

type OrderReview struct {
	Product     Product        `json:"product"`
	Measurement MeasurementRef `json:"measurement"`
	Quantity    int            `json:"quantity"`
	Notes       string         `json:"notes,omitempty"`
}

type OrderSubmitted struct {
	OrderReview
	OrderID string `json:"order_id"`
}

func (SelectProduct) orderStep()     {}
func (SelectMeasurement) orderStep() {}
func (OrderDetails) orderStep()      {}
func (OrderReview) orderStep()       {}
func (OrderSubmitted) orderStep()    {}

func (SelectProduct) Name() string     { return "select_product" }
func (SelectMeasurement) Name() string { return "select_measurement" }
func (OrderDetails) Name() string      { return "order_details" }
func (OrderReview) Name() string       { return "review" }
func (OrderSubmitted) Name() string    { return "submitted" }

// Payload is the body posted to the remote API to create the order
func (r OrderReview) Payload() map[string]any {
	p := map[string]any{
		"product_id":     r.Product.ID,
		"measurement_id": r.Measurement.ID,
		"quantity":       r.Quantity,
	}
	if r.Notes != "" {
		p["notes"] = r.Notes
	}
	return p
}

// OrderAction is an input to ReduceOrder
type OrderAction interface {
	orderAction()
}

type ChooseProduct struct {
	Product Product `json:"product"`
}

type ChooseMeasurement struct {
	Measurement MeasurementRef `json:"measurement"`
}

type SetOrderDetails struct {
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

// OrderBack returns to the previous step, keeping what was chosen there
type OrderBack struct{}

// OrderAccepted records the id the remote API assigned to the order
type OrderAccepted struct {
	OrderID string `json:"order_id"`
}

func (ChooseProduct) orderAction()     {}
func (ChooseMeasurement) orderAction() {}
func (SetOrderDetails) orderAction()   {}
func (OrderBack) orderAction()         {}
func (OrderAccepted) orderAction()     {}

// NewOrder returns the first step
func NewOrder() OrderStep {
	return SelectProduct{}
}

// ReduceOrder computes the next step. It never mutates its input.
func ReduceOrder(step OrderStep, action OrderAction) (OrderStep, error) {
	if _, done := step.(OrderSubmitted); done {
		return step, ErrAlreadySubmitted
	}

	switch a := action.(type) {
	case ChooseProduct:
		switch step.(type) {
		case SelectProduct, SelectMeasurement:
		default:
			return step, ErrInvalidTransition
		}
		if strings.TrimSpace(a.Product.ID) == "" {
			return step, ErrNoProduct
		}
		return SelectMeasurement{Product: a.Product}, nil

	case ChooseMeasurement:
		var product Product
		switch s := step.(type) {
		case SelectProduct:
			return step, ErrNoProduct
		case SelectMeasurement:
			product = s.Product
		case OrderDetails:
			product = s.Product
		default:
			return step, ErrInvalidTransition
		}
		if strings.TrimSpace(a.Measurement.ID) == "" {
			return step, ErrNoMeasurement
		}
		return OrderDetails{Product: product, Measurement: a.Measurement}, nil

	case SetOrderDetails:
		var details OrderDetails
		switch s := step.(type) {
		case SelectProduct:
			return step, ErrNoProduct
		case SelectMeasurement:
			return step, ErrNoMeasurement
		case OrderDetails:
			details = s
		case OrderReview:
			details = OrderDetails{Product: s.Product, Measurement: s.Measurement}
		default:
			return step, ErrInvalidTransition
		}
		if a.Quantity < 1 || a.Quantity > MaxQuantity {
			return step, ErrInvalidQuantity
		}
		return OrderReview{
			Product:     details.Product,
			Measurement: details.Measurement,
			Quantity:    a.Quantity,
			Notes:       strings.TrimSpace(a.Notes),
		}, nil

	case OrderBack:
		switch s := step.(type) {
		case SelectProduct:
			return s, nil
		case SelectMeasurement:
			return SelectProduct{}, nil
		case OrderDetails:
			return SelectMeasurement{Product: s.Product}, nil
		case OrderReview:
			return OrderDetails{Product: s.Product, Measurement: s.Measurement}, nil
		}
		return step, ErrInvalidTransition

	case OrderAccepted:
		review, ok := step.(OrderReview)
		if !ok {
			return step, ErrInvalidTransition
		}
		return OrderSubmitted{OrderReview: review, OrderID: a.OrderID}, nil
	}

	return step, fmt.Errorf("%w: %T", ErrUnknownAction, action)
}
