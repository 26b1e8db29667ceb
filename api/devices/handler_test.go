package devices

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agrolink/core/model"
	"github.com/kilianp07/agrolink/core/registry"
	"github.com/kilianp07/agrolink/core/store"
)

func fixture(t *testing.T) (*registry.StaticRegistry, *store.MemoryStore) {
	t.Helper()
	reg, err := registry.NewStatic(
		[]model.Tenant{{ID: "farm", BaseURL: "http://x", Username: "u"}, {ID: "orchard", BaseURL: "http://y", Username: "u"}},
		[]model.Device{
			{ID: "pump", Name: "Pump", TenantID: "farm", RemoteID: "r1"},
			{ID: "fan", TenantID: "farm", RemoteID: "r2"},
			{ID: "sprinkler", TenantID: "orchard", RemoteID: "r3"},
		})
	require.NoError(t, err)
	st := store.NewMemoryStore()
	at := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveStatus(context.Background(), store.DeviceStatus{DeviceID: "pump", Online: true, LastChecked: at}))
	require.NoError(t, st.SaveStatus(context.Background(), store.DeviceStatus{DeviceID: "fan", LastChecked: at, OfflineSince: at}))
	return reg, st
}

func get(t *testing.T, h http.Handler, url string) (int, []Entry) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))
	if rr.Code != http.StatusOK {
		return rr.Code, nil
	}
	var out []Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return rr.Code, out
}

func TestStatusHandler_Basic(t *testing.T) {
	reg, st := fixture(t)
	code, out := get(t, NewStatusHandler(reg, st), "/api/devices/status")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out, 3)

	byID := map[string]Entry{}
	for _, e := range out {
		byID[e.DeviceID] = e
	}
	assert.Equal(t, "Pump", byID["pump"].Name)
	require.NotNil(t, byID["pump"].Online)
	assert.True(t, *byID["pump"].Online)
	assert.Nil(t, byID["pump"].OfflineSince)
	require.NotNil(t, byID["fan"].OfflineSince)
	assert.Nil(t, byID["sprinkler"].Online)
}

func TestStatusHandler_Filters(t *testing.T) {
	reg, st := fixture(t)
	h := NewStatusHandler(reg, st)

	_, out := get(t, h, "/api/devices/status?online=false")
	require.Len(t, out, 1)
	assert.Equal(t, "fan", out[0].DeviceID)

	_, out = get(t, h, "/api/devices/status?tenant_id=orchard")
	require.Len(t, out, 1)
	assert.Equal(t, "sprinkler", out[0].DeviceID)

	code, _ := get(t, h, "/api/devices/status?online=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
}

type failingStatuses struct{}

func (failingStatuses) Statuses(context.Context) ([]store.DeviceStatus, error) {
	return nil, errors.New("db closed")
}

func TestStatusHandler_Errors(t *testing.T) {
	reg, _ := fixture(t)
	h := NewStatusHandler(reg, failingStatuses{})
	code, _ := get(t, h, "/api/devices/status")
	assert.Equal(t, http.StatusInternalServerError, code)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/devices/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
