// Package response interprets vehicle API and OAuth token endpoint responses.
//
// Validation is a nested-key existence check, not schema enforcement: the
// status code must be 200, the body must be JSON, and the key paths each
// endpoint promises must exist. Anything else becomes a typed apierror.
package response

import (
	"math"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/florianilch/chargectl/internal/apierror"
)

// Endpoint names an upstream operation with its own success-shape contract.
type Endpoint string

const (
	EndpointStatus       Endpoint = "status"
	EndpointStart        Endpoint = "start"
	EndpointStop         Endpoint = "stop"
	EndpointWake         Endpoint = "wake"
	EndpointTokenRefresh Endpoint = "token-refresh"
)

// requiredPaths lists the gjson paths that must exist on a successful response.
var requiredPaths = map[Endpoint][]string{
	EndpointStatus:       {"response.battery_level"},
	EndpointStart:        {"response.result"},
	EndpointStop:         {"response.result"},
	EndpointWake:         {"response"},
	EndpointTokenRefresh: {"access_token", "refresh_token", "expires_in"},
}

// Validate checks status, JSON validity and the required key paths of
// endpoint, returning the parsed document.
func Validate(endpoint Endpoint, statusCode int, body []byte) (gjson.Result, error) {
	if statusCode != http.StatusOK {
		return gjson.Result{}, &apierror.UnexpectedStatusError{Endpoint: string(endpoint), Code: statusCode}
	}

	if err := validateJSON(body); err != nil {
		return gjson.Result{}, &apierror.MalformedBodyError{Endpoint: string(endpoint), Err: err}
	}

	doc := gjson.ParseBytes(body)
	for _, path := range requiredPaths[endpoint] {
		if !doc.Get(path).Exists() {
			return gjson.Result{}, &apierror.UnexpectedShapeError{Endpoint: string(endpoint), Path: path}
		}
	}
	return doc, nil
}

// ChargeState extracts the battery level from a charge_state response,
// rounded to the nearest whole percent.
func ChargeState(statusCode int, body []byte) (int, error) {
	doc, err := Validate(EndpointStatus, statusCode, body)
	if err != nil {
		return 0, err
	}

	level := doc.Get("response.battery_level")
	if level.Type != gjson.Number {
		return 0, &apierror.UnexpectedShapeError{Endpoint: string(EndpointStatus), Path: "response.battery_level"}
	}
	return int(math.Round(level.Float())), nil
}

// CommandResult checks a charge_start/charge_stop response. A result other
// than boolean true is a rejection carrying the provider's reason verbatim.
func CommandResult(endpoint Endpoint, statusCode int, body []byte) error {
	doc, err := Validate(endpoint, statusCode, body)
	if err != nil {
		return err
	}

	if doc.Get("response.result").Type == gjson.True {
		return nil
	}

	reason := doc.Get("response.reason")
	if !reason.Exists() {
		return &apierror.UnexpectedShapeError{Endpoint: string(endpoint), Path: "response.reason"}
	}
	return &apierror.CommandRejectedError{Endpoint: string(endpoint), Reason: reason.String()}
}

// WakeUp checks a wake_up response; any response object counts as success.
func WakeUp(statusCode int, body []byte) error {
	_, err := Validate(EndpointWake, statusCode, body)
	return err
}
