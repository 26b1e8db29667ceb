package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordMonitor struct {
	errs []error
	tags []map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *recordMonitor) Flush(time.Duration) {}

func TestCaptureDeviceError(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(nil)

	CaptureDeviceError(errors.New("unreachable"), "reachability", "pump-1")
	CaptureException(nil, map[string]string{"module": "x"})

	assert.Len(t, rec.errs, 1)
	assert.Equal(t, map[string]string{"module": "reachability", "device_id": "pump-1"}, rec.tags[0])
}

func TestInitNilRestoresNop(t *testing.T) {
	Init(&recordMonitor{})
	Init(nil)
	assert.IsType(t, NopMonitor{}, get())
	assert.NotPanics(t, func() { Flush(time.Millisecond) })
}
