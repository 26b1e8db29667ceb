package devices

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/agrolink/core/model"
	"github.com/kilianp07/agrolink/core/store"
)

// DeviceLister lists the registered devices.
type DeviceLister interface {
	Devices(ctx context.Context) ([]model.Device, error)
}

// StatusLister lists the persisted device statuses.
type StatusLister interface {
	Statuses(ctx context.Context) ([]store.DeviceStatus, error)
}

// Entry is one device in the status listing. Online is absent until the
// device has been checked once.
type Entry struct {
	DeviceID     string             `json:"device_id"`
	Name         string             `json:"name"`
	TenantID     string             `json:"tenant_id"`
	Status       model.DeviceStatus `json:"status,omitempty"`
	Online       *bool              `json:"online,omitempty"`
	LastChecked  *time.Time         `json:"last_checked,omitempty"`
	OfflineSince *time.Time         `json:"offline_since,omitempty"`
}

// NewStatusHandler returns an HTTP handler exposing device reachability via
// GET /api/devices/status. Optional filters: tenant_id and online.
func NewStatusHandler(devices DeviceLister, statuses StatusLister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var onlineFilter *bool
		if v := r.URL.Query().Get("online"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "invalid online filter", http.StatusBadRequest)
				return
			}
			onlineFilter = &b
		}
		tenant := r.URL.Query().Get("tenant_id")

		devs, err := devices.Devices(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sts, err := statuses.Statuses(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		byID := make(map[string]store.DeviceStatus, len(sts))
		for _, st := range sts {
			byID[st.DeviceID] = st
		}

		entries := make([]Entry, 0, len(devs))
		for _, d := range devs {
			if tenant != "" && d.TenantID != tenant {
				continue
			}
			e := Entry{DeviceID: d.ID, Name: d.DisplayName(), TenantID: d.TenantID, Status: d.Status}
			if st, ok := byID[d.ID]; ok {
				online, checked := st.Online, st.LastChecked
				e.Online, e.LastChecked = &online, &checked
				if !st.OfflineSince.IsZero() {
					since := st.OfflineSince
					e.OfflineSince = &since
				}
			}
			if onlineFilter != nil && (e.Online == nil || *e.Online != *onlineFilter) {
				continue
			}
			entries = append(entries, e)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
