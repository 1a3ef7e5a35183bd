package api

import (
	"net/http"

	"github.com/ccu-tools/ccuflux/internal/ccu"
	"github.com/ccu-tools/ccuflux/internal/telemetry"
)

// DeviceView is a device with its datapoints annotated against the current
// logging decisions. The web UI renders checkboxes from the annotations.
type DeviceView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Serial   string        `json:"serial"`
	Channels []ChannelView `json:"channels"`
}

// ChannelView is one channel of a DeviceView.
type ChannelView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Address    string          `json:"address"`
	Room       string          `json:"room,omitempty"`
	Datapoints []DatapointView `json:"datapoints"`
}

// DatapointView annotates a datapoint address with the logging decision.
//
// Whitelisted means a whitelist pattern matches; Selected means the address
// is on the exact selection. Logged is the effective decision (either one).
type DatapointView struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Whitelisted bool   `json:"whitelisted"`
	Selected    bool   `json:"selected"`
	Logged      bool   `json:"logged"`
}

// handleListDevices returns the controller device directory with logging
// annotations. No controller configured yields an empty list, not an error.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	directory := s.pipeline.Directory()
	if directory == nil {
		writeJSON(w, http.StatusOK, []DeviceView{})
		return
	}

	devices, err := directory.FetchDevices(r.Context(), true)
	if err != nil {
		writeUnavailable(w, "controller directory unavailable: "+err.Error())
		return
	}
	if _, err := directory.FetchRooms(r.Context()); err != nil {
		s.logger.Warn("fetching rooms for device browser", "error", err)
	}

	filter := s.pipeline.Filter()

	views := make([]DeviceView, 0, len(devices))
	for _, device := range devices {
		views = append(views, s.annotateDevice(device, filter))
	}

	writeJSON(w, http.StatusOK, views)
}

// handleRefreshDevices drops the directory cache so the next listing
// re-queries the controller. Used after devices are taught in.
func (s *Server) handleRefreshDevices(w http.ResponseWriter, _ *http.Request) {
	directory := s.pipeline.Directory()
	if directory == nil {
		writeUnavailable(w, "no controller configured")
		return
	}

	directory.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// annotateDevice maps a directory device onto its annotated view.
func (s *Server) annotateDevice(device ccu.Device, filter *telemetry.Filter) DeviceView {
	view := DeviceView{
		ID:       device.ID,
		Name:     device.Name,
		Serial:   device.Serial,
		Channels: make([]ChannelView, 0, len(device.Channels)),
	}

	for _, channel := range device.Channels {
		cv := ChannelView{
			ID:         channel.ID,
			Name:       channel.Name,
			Address:    channel.Address,
			Room:       channel.Room,
			Datapoints: make([]DatapointView, 0, len(channel.Datapoints)),
		}
		for _, dp := range channel.Datapoints {
			dv := DatapointView{
				ID:      dp.ID,
				Address: dp.Name,
			}
			if filter != nil {
				dv.Whitelisted = filter.MatchesWhitelist(dp.Name)
				dv.Selected = filter.IsSelected(dp.Name)
				dv.Logged = dv.Whitelisted || dv.Selected
			}
			cv.Datapoints = append(cv.Datapoints, dv)
		}
		view.Channels = append(view.Channels, cv)
	}

	return view
}
