// Package vehicle runs charging commands against a single vehicle.
//
// Each operation issues exactly one request and interprets its response;
// there is no retry and no state kept between operations.
package vehicle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/florianilch/chargectl/internal/apiclient"
	"github.com/florianilch/chargectl/internal/apierror"
	"github.com/florianilch/chargectl/internal/response"
)

// Action is a charging command accepted on the command line.
type Action string

const (
	ActionStatus Action = "status"
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionWake   Action = "wake"
)

// Actions lists the supported actions.
var Actions = []Action{ActionStatus, ActionStart, ActionStop, ActionWake}

// ParseAction validates s. Unknown strings yield *apierror.UnknownActionError.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", &apierror.UnknownActionError{Action: s}
}

// Doer sends a request relative to the API base URL.
type Doer interface {
	Do(ctx context.Context, method, path string) (*apiclient.Response, error)
}

// Compile-time check to ensure apiclient.Client implements Doer
var _ Doer = (*apiclient.Client)(nil)

// Outcome is the result of a successful action.
type Outcome struct {
	Action Action
	// BatteryLevel is set for ActionStatus only.
	BatteryLevel int
}

// Executor runs actions for one vehicle.
type Executor struct {
	client    Doer
	vehicleID string
}

// NewExecutor creates an Executor. vehicleID must not be empty.
func NewExecutor(client Doer, vehicleID string) (*Executor, error) {
	if client == nil {
		return nil, fmt.Errorf("missing API client")
	}
	if vehicleID == "" {
		return nil, fmt.Errorf("vehicle id cannot be empty")
	}
	return &Executor{client: client, vehicleID: vehicleID}, nil
}

func (e *Executor) path(suffix string) string {
	return "api/1/vehicles/" + url.PathEscape(e.vehicleID) + "/" + suffix
}

// Run dispatches action and returns its outcome.
func (e *Executor) Run(ctx context.Context, action Action) (Outcome, error) {
	logger := slog.With("action", string(action))
	logger.DebugContext(ctx, "running vehicle action")

	outcome := Outcome{Action: action}
	var err error
	switch action {
	case ActionStatus:
		outcome.BatteryLevel, err = e.Status(ctx)
	case ActionStart:
		err = e.Start(ctx)
	case ActionStop:
		err = e.Stop(ctx)
	case ActionWake:
		err = e.Wake(ctx)
	default:
		return Outcome{}, &apierror.UnknownActionError{Action: string(action)}
	}
	if err != nil {
		logger.DebugContext(ctx, "vehicle action failed", "error_kind", apierror.KindOf(err))
		return Outcome{}, err
	}
	return outcome, nil
}

// Status returns the current battery level.
func (e *Executor) Status(ctx context.Context) (int, error) {
	resp, err := e.client.Do(ctx, http.MethodGet, e.path("data_request/charge_state"))
	if err != nil {
		return 0, err
	}
	return response.ChargeState(resp.StatusCode, resp.Body)
}

// Start asks the vehicle to start charging.
func (e *Executor) Start(ctx context.Context) error {
	return e.command(ctx, response.EndpointStart, "command/charge_start")
}

// Stop asks the vehicle to stop charging.
func (e *Executor) Stop(ctx context.Context) error {
	return e.command(ctx, response.EndpointStop, "command/charge_stop")
}

func (e *Executor) command(ctx context.Context, endpoint response.Endpoint, suffix string) error {
	resp, err := e.client.Do(ctx, http.MethodPost, e.path(suffix))
	if err != nil {
		return err
	}
	return response.CommandResult(endpoint, resp.StatusCode, resp.Body)
}

// Wake wakes the vehicle from sleep.
func (e *Executor) Wake(ctx context.Context) error {
	resp, err := e.client.Do(ctx, http.MethodPost, e.path("wake_up"))
	if err != nil {
		return err
	}
	return response.WakeUp(resp.StatusCode, resp.Body)
}
