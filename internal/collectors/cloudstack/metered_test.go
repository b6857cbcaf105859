package cloudstack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordedCall struct {
	command string
	failed  bool
}

type fakeRecorder struct {
	calls []recordedCall
}

func (r *fakeRecorder) InventoryCall(command string, err error) {
	r.calls = append(r.calls, recordedCall{command, err != nil})
}

func TestMetered(t *testing.T) {
	failing := errors.New("timeout")
	caller := &fakeCaller{answer: func(command string, _ map[string]string) (string, error) {
		if command == "listProjects" {
			return "", failing
		}
		return `{"count":0}`, nil
	}}
	recorder := &fakeRecorder{}
	metered := Metered(caller, recorder)

	var out listZonesResponse
	assert.NoError(t, metered.Call(context.Background(), "listZones", nil, &out))
	assert.ErrorIs(t, metered.Call(context.Background(), "listProjects", nil, &out), failing)

	assert.Equal(t, []recordedCall{{"listZones", false}, {"listProjects", true}}, recorder.calls)
}
