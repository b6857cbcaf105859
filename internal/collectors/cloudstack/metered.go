package cloudstack

import "context"

// Recorder observes API calls
type Recorder interface {
	InventoryCall(command string, err error)
}

type meteredCaller struct {
	next     Caller
	recorder Recorder
}

// Metered reports every call made through next to recorder
func Metered(next Caller, recorder Recorder) Caller {
	return &meteredCaller{next: next, recorder: recorder}
}

func (m *meteredCaller) Call(ctx context.Context, command string, params map[string]string, out interface{}) error {
	err := m.next.Call(ctx, command, params, out)
	m.recorder.InventoryCall(command, err)
	return err
}
