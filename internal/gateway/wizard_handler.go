package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"tailorly/internal/authctx"
	"tailorly/internal/session"
	"tailorly/internal/upstream"
	"tailorly/internal/wizard"

	"github.com/gin-gonic/gin"
)

const maxActionBytes = 64 << 10

// createdResource is the API's answer to a create call. The id may sit at the
// top level or under a wrapper key.
type createdResource struct {
	ID          session.ID       `json:"id"`
	Order       *createdResource `json:"order,omitempty"`
	Measurement *createdResource `json:"measurement,omitempty"`
	Data        *createdResource `json:"data,omitempty"`
}

func (r *createdResource) id() string {
	if r == nil {
		return ""
	}
	if r.ID != "" {
		return string(r.ID)
	}
	for _, inner := range []*createdResource{r.Data, r.Order, r.Measurement} {
		if id := inner.id(); id != "" {
			return id
		}
	}
	return ""
}

// flow binds one wizard's step and action types to HTTP
type flow[S any, A any] struct {
	name       string
	submitPath string

	load         func(ctx context.Context, browserID string) S
	save         func(ctx context.Context, browserID string, step S) error
	reset        func(ctx context.Context, browserID string) error
	encode       func(step S) ([]byte, error)
	decodeAction func(b []byte) (A, error)
	reduce       func(step S, action A) (S, error)
	// payload returns the body to submit when step is ready for it
	payload  func(step S) (map[string]any, bool)
	accepted func(id string) A

	api    *upstream.Client
	auth   *authctx.Manager
	logger *slog.Logger

	// submitting holds the browser ids with a submission on the wire
	submitting sync.Map
}

// WizardHandler serves the order and measurement wizards
type WizardHandler struct {
	order       *flow[wizard.OrderStep, wizard.OrderAction]
	measurement *flow[wizard.MeasurementStep, wizard.MeasurementAction]
}

// NewWizardHandler creates a WizardHandler. Submitted wizards are posted to
// the remote API through api.
func NewWizardHandler(store *wizard.Store, api *upstream.Client, auth *authctx.Manager, logger *slog.Logger) *WizardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WizardHandler{
		order: &flow[wizard.OrderStep, wizard.OrderAction]{
			name:         "order",
			submitPath:   "/api/orders",
			load:         store.Order,
			save:         store.SaveOrder,
			reset:        store.ResetOrder,
			encode:       wizard.EncodeOrder,
			decodeAction: wizard.DecodeOrderAction,
			reduce:       wizard.ReduceOrder,
			payload: func(s wizard.OrderStep) (map[string]any, bool) {
				review, ok := s.(wizard.OrderReview)
				if !ok {
					return nil, false
				}
				return review.Payload(), true
			},
			accepted: func(id string) wizard.OrderAction { return wizard.OrderAccepted{OrderID: id} },
			api:      api,
			auth:     auth,
			logger:   logger,
		},
		measurement: &flow[wizard.MeasurementStep, wizard.MeasurementAction]{
			name:         "measurement",
			submitPath:   "/api/measurements",
			load:         store.Measurement,
			save:         store.SaveMeasurement,
			reset:        store.ResetMeasurement,
			encode:       wizard.EncodeMeasurement,
			decodeAction: wizard.DecodeMeasurementAction,
			reduce:       wizard.ReduceMeasurement,
			payload: func(s wizard.MeasurementStep) (map[string]any, bool) {
				review, ok := s.(wizard.MeasurementReview)
				if !ok {
					return nil, false
				}
				return review.Payload(), true
			},
			accepted: func(id string) wizard.MeasurementAction {
				return wizard.MeasurementAccepted{MeasurementID: id}
			},
			api:    api,
			auth:   auth,
			logger: logger,
		},
	}
}

// Register mounts GET, POST /actions and DELETE for both wizards under g
func (h *WizardHandler) Register(g *gin.RouterGroup) {
	g.GET("/order", h.order.get)
	g.POST("/order/actions", h.order.act)
	g.DELETE("/order", h.order.discard)

	g.GET("/measurement", h.measurement.get)
	g.POST("/measurement/actions", h.measurement.act)
	g.DELETE("/measurement", h.measurement.discard)
}

func (f *flow[S, A]) render(c *gin.Context, status int, step S) {
	b, err := f.encode(step)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Data(status, "application/json; charset=utf-8", b)
}

func (f *flow[S, A]) get(c *gin.Context) {
	browserID := authContext(c).BrowserID()
	f.render(c, http.StatusOK, f.load(c.Request.Context(), browserID))
}

func (f *flow[S, A]) discard(c *gin.Context) {
	browserID := authContext(c).BrowserID()
	if err := f.reset(c.Request.Context(), browserID); err != nil {
		f.logger.Error("Failed to reset wizard",
			"wizard", f.name,
			"browser_id", browserID,
			"error", err.Error(),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (f *flow[S, A]) act(c *gin.Context) {
	ctx := c.Request.Context()
	ac := authContext(c)
	browserID := ac.BrowserID()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxActionBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	actionType, err := wizard.ActionType(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	step := f.load(ctx, browserID)

	var action A
	if actionType == wizard.ActionSubmit {
		if _, busy := f.submitting.LoadOrStore(browserID, struct{}{}); busy {
			c.JSON(http.StatusConflict, gin.H{"error": "submission already in progress"})
			return
		}
		defer f.submitting.Delete(browserID)

		// Re-read under the guard so a submission that just finished is seen.
		step = f.load(ctx, browserID)
		id, ok := f.submit(c, ac, step)
		if !ok {
			return
		}
		action = f.accepted(id)
	} else {
		action, err = f.decodeAction(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	next, err := f.reduce(step, action)
	if err != nil {
		f.reject(c, step, err)
		return
	}

	if err := f.save(ctx, browserID, next); err != nil {
		f.logger.Error("Failed to save wizard",
			"wizard", f.name,
			"browser_id", browserID,
			"error", err.Error(),
		)
		if actionType != wizard.ActionSubmit {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		// The API already holds the record; drop the draft so it cannot be posted twice.
		if err := f.reset(ctx, browserID); err != nil {
			f.logger.Error("Failed to drop submitted wizard",
				"wizard", f.name,
				"browser_id", browserID,
				"error", err.Error(),
			)
		}
	}
	f.render(c, http.StatusOK, next)
}

// submit posts the reviewed wizard to the API and returns the assigned id.
// It writes the error response itself when it fails.
func (f *flow[S, A]) submit(c *gin.Context, ac *authctx.Context, step S) (string, bool) {
	payload, ready := f.payload(step)
	if !ready {
		f.reject(c, step, wizard.ErrInvalidTransition)
		return "", false
	}
	token, ok := ac.Token()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": "/login"})
		return "", false
	}

	var created createdResource
	_, err := f.api.PostJSON(c.Request.Context(), f.submitPath, token, payload, &created)

	var statusErr *upstream.StatusError
	switch {
	case err == nil:
	case errors.As(err, &statusErr) && statusErr.Unauthorized():
		f.auth.Invalidate(context.WithoutCancel(c.Request.Context()), ac.BrowserID(), "api rejected credential")
		c.Header("X-Session-Expired", "true")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": "/login"})
		return "", false
	case errors.As(err, &statusErr) && statusErr.StatusCode < 500:
		c.Data(statusErr.StatusCode, "application/json; charset=utf-8", statusErr.Body)
		return "", false
	default:
		f.logger.Error("Wizard submission failed",
			"wizard", f.name,
			"browser_id", ac.BrowserID(),
			"error", err.Error(),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "submission failed, please try again"})
		return "", false
	}

	return created.id(), true
}

// reject reports a refused action together with the unchanged step
func (f *flow[S, A]) reject(c *gin.Context, step S, err error) {
	status := http.StatusUnprocessableEntity
	if errors.Is(err, wizard.ErrInvalidTransition) || errors.Is(err, wizard.ErrAlreadySubmitted) {
		status = http.StatusConflict
	}
	if errors.Is(err, wizard.ErrUnknownAction) {
		status = http.StatusBadRequest
	}

	current, encErr := f.encode(step)
	if encErr != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(status, gin.H{
		"error":   err.Error(),
		"current": jsonRaw(current),
	})
}

// jsonRaw embeds already-encoded JSON in a gin.H
type jsonRaw []byte

func (r jsonRaw) MarshalJSON() ([]byte, error) {
	return r, nil
}
