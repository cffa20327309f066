package vehicle

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/chargectl/internal/apiclient"
	"github.com/florianilch/chargectl/internal/apierror"
)

type request struct {
	method string
	path   string
}

// fakeClient answers every request with one canned response.
type fakeClient struct {
	status int
	body   string
	err    error

	requests []request
}

func (f *fakeClient) Do(_ context.Context, method, path string) (*apiclient.Response, error) {
	f.requests = append(f.requests, request{method: method, path: path})
	if f.err != nil {
		return nil, f.err
	}
	return &apiclient.Response{StatusCode: f.status, Body: []byte(f.body)}, nil
}

func newExecutor(t *testing.T, client *fakeClient) *Executor {
	t.Helper()
	e, err := NewExecutor(client, "1492931520123456")
	require.NoError(t, err)
	return e
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"status", "start", "stop", "wake"} {
		a, err := ParseAction(s)
		require.NoError(t, err)
		assert.Equal(t, Action(s), a)
	}

	for _, s := range []string{"reboot", "", "STATUS", " start"} {
		_, err := ParseAction(s)
		var unknown *apierror.UnknownActionError
		require.ErrorAs(t, err, &unknown, s)
		assert.Equal(t, s, unknown.Action)
	}
}

func TestExecutor_Requests(t *testing.T) {
	tests := []struct {
		action Action
		body   string
		want   request
	}{
		{action: ActionStatus, body: `{"response":{"battery_level":42}}`, want: request{http.MethodGet, "api/1/vehicles/1492931520123456/data_request/charge_state"}},
		{action: ActionStart, body: `{"response":{"result":true,"reason":""}}`, want: request{http.MethodPost, "api/1/vehicles/1492931520123456/command/charge_start"}},
		{action: ActionStop, body: `{"response":{"result":true,"reason":""}}`, want: request{http.MethodPost, "api/1/vehicles/1492931520123456/command/charge_stop"}},
		{action: ActionWake, body: `{"response":{"state":"online"}}`, want: request{http.MethodPost, "api/1/vehicles/1492931520123456/wake_up"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			client := &fakeClient{status: http.StatusOK, body: tt.body}

			outcome, err := newExecutor(t, client).Run(context.Background(), tt.action)
			require.NoError(t, err)

			assert.Equal(t, tt.action, outcome.Action)
			assert.Equal(t, []request{tt.want}, client.requests)
		})
	}
}

func TestExecutor_Status(t *testing.T) {
	client := &fakeClient{status: http.StatusOK, body: `{"response":{"battery_level":42}}`}
	outcome, err := newExecutor(t, client).Run(context.Background(), ActionStatus)
	require.NoError(t, err)
	assert.Equal(t, 42, outcome.BatteryLevel)

	client = &fakeClient{status: http.StatusOK, body: `{"response":{}}`}
	_, err = newExecutor(t, client).Status(context.Background())
	var shapeErr *apierror.UnexpectedShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "status", shapeErr.Endpoint)
}

func TestExecutor_StartStopRejected(t *testing.T) {
	body := `{"response":{"result":false,"reason":"charge_port_door_open"}}`
	for _, action := range []Action{ActionStart, ActionStop} {
		t.Run(string(action), func(t *testing.T) {
			client := &fakeClient{status: http.StatusOK, body: body}

			_, err := newExecutor(t, client).Run(context.Background(), action)

			var rejected *apierror.CommandRejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, "charge_port_door_open", rejected.Reason)
		})
	}
}

func TestExecutor_WakeUnavailable(t *testing.T) {
	for _, body := range []string{`{"response":{"state":"online"}}`, `service unavailable`, ``} {
		client := &fakeClient{status: http.StatusServiceUnavailable, body: body}

		err := newExecutor(t, client).Wake(context.Background())

		var statusErr *apierror.UnexpectedStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	}
}

func TestExecutor_UnknownActionNeverReachesClient(t *testing.T) {
	client := &fakeClient{status: http.StatusOK, body: `{}`}

	_, err := newExecutor(t, client).Run(context.Background(), Action("reboot"))

	var unknown *apierror.UnknownActionError
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, client.requests)
}

func TestExecutor_TransportErrorPropagates(t *testing.T) {
	cause := errors.New("connection refused")
	client := &fakeClient{err: cause}

	_, err := newExecutor(t, client).Run(context.Background(), ActionWake)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, client.requests, 1, "no retry")
}

func TestExecutor_EscapesVehicleID(t *testing.T) {
	client := &fakeClient{status: http.StatusOK, body: `{"response":{}}`}
	e, err := NewExecutor(client, "../other")
	require.NoError(t, err)

	require.NoError(t, e.Wake(context.Background()))
	assert.Equal(t, "api/1/vehicles/..%2Fother/wake_up", client.requests[0].path)
}

func TestNewExecutor_Validation(t *testing.T) {
	_, err := NewExecutor(&fakeClient{}, "")
	assert.Error(t, err)
	_, err = NewExecutor(nil, "1492931520123456")
	assert.Error(t, err)
}
