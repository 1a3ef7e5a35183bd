package ccu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Default timeouts for Rega script execution.
const (
	defaultRegaTimeout = 15 * time.Second

	// regaTimeLayout is the timestamp format emitted by Rega's ToString().
	regaTimeLayout = "2006-01-02 15:04:05"
)

// wellKnownPorts maps interface names to their XML-RPC ports. The URLs the
// CCU reports for its own interfaces use internal ports that are not
// reachable from outside, so these take precedence.
var wellKnownPorts = map[string]int{
	"BidCos-RF":      2001,
	"BidCos-Wired":   2000,
	"HmIP-RF":        2010,
	"VirtualDevices": 9292,
}

// RegaClient implements Directory against the CCU's Rega script endpoint.
//
// All fetches are HTTP POSTs of small Rega scripts to tclrega.exe; the
// scripts emit JSON which the endpoint returns followed by an XML trailer.
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
type RegaClient struct {
	ccuAddress string
	url        string
	httpClient *http.Client

	// Device directory cache, kept until ClearCache.
	devices  []Device
	channels map[string]ChannelInfo // keyed by SERIAL:CH
	cacheMu  sync.RWMutex

	// Change bookkeeping for polled objects. The first fetch of an object
	// records a baseline and reports no change, so a pipeline reload does
	// not replay the object's last transition into the store.
	varSeen map[string]time.Time
	prgSeen map[string]int64
	seenMu  sync.Mutex
}

// NewRegaClient creates a Directory talking to the given CCU.
//
// Parameters:
//   - address: CCU hostname or IP
//   - port: Rega script endpoint port (normally 8181)
//
// Returns:
//   - *RegaClient: Client ready for use; no connection is made yet
func NewRegaClient(address string, port int) *RegaClient {
	return &RegaClient{
		ccuAddress: address,
		url:        fmt.Sprintf("http://%s:%d/tclrega.exe", address, port),
		httpClient: &http.Client{
			Timeout: defaultRegaTimeout,
		},
		channels: make(map[string]ChannelInfo),
		varSeen:  make(map[string]time.Time),
		prgSeen:  make(map[string]int64),
	}
}

// runScript executes a Rega script and returns its JSON output.
//
// The endpoint appends an XML execution trailer to the script output; it is
// stripped before returning.
func (r *RegaClient) runScript(ctx context.Context, script string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, strings.NewReader(script))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrDirectoryUnavailable, err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrDirectoryUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrDirectoryUnavailable, err)
	}

	if idx := bytes.LastIndex(body, []byte("<xml>")); idx >= 0 {
		body = body[:idx]
	}

	return bytes.TrimSpace(body), nil
}

// Lookup resolves a full datapoint address to channel display metadata.
//
// Returns ok=false when the address does not parse, the channel is unknown,
// or the device directory has not been fetched yet. Callers degrade to
// placeholder values on a miss.
func (r *RegaClient) Lookup(address string) (ChannelInfo, bool) {
	addr, err := ParseAddress(address)
	if err != nil {
		return ChannelInfo{}, false
	}

	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	info, ok := r.channels[addr.ChannelAddress()]
	return info, ok
}

// FetchInterfaces enumerates the controller's RPC interfaces.
//
// The CCU reports interface URLs using xmlrpc schemes and loopback hosts;
// they are rewritten to the configured CCU address and the well-known
// external ports before being returned.
func (r *RegaClient) FetchInterfaces(ctx context.Context) ([]Interface, error) {
	body, err := r.runScript(ctx, scriptInterfaces)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing interfaces: %w", ErrDirectoryUnavailable, err)
	}

	interfaces := make([]Interface, 0, len(raw))
	for _, entry := range raw {
		if len(entry.URL) < 2 {
			continue
		}
		iface, err := r.rewriteInterfaceURL(entry.Name, entry.URL)
		if err != nil {
			continue
		}
		interfaces = append(interfaces, iface)
	}

	return interfaces, nil
}

// rewriteInterfaceURL normalises a controller-reported interface URL.
func (r *RegaClient) rewriteInterfaceURL(name, rawURL string) (Interface, error) {
	rawURL = strings.Replace(rawURL, "xmlrpc_bin://", "http://", 1)
	rawURL = strings.Replace(rawURL, "xmlrpc://", "http://", 1)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Interface{}, fmt.Errorf("parsing interface url %q: %w", rawURL, err)
	}

	port, ok := wellKnownPorts[name]
	if !ok {
		port, _ = strconv.Atoi(parsed.Port())
	}

	host := parsed.Hostname()
	if host == "127.0.0.1" || host == "localhost" {
		host = r.ccuAddress
	}

	return Interface{
		Name: name,
		Host: host,
		Port: port,
		Path: parsed.Path,
	}, nil
}

// FetchDevices returns the device directory.
//
// The result is cached after the first fetch and served from memory until
// ClearCache is called. A fetch with includeDatapoints upgrades the cache; a
// fetch without them is satisfied by a cache built either way.
func (r *RegaClient) FetchDevices(ctx context.Context, includeDatapoints bool) ([]Device, error) {
	r.cacheMu.RLock()
	cached := r.devices
	r.cacheMu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	script := scriptDevices
	if includeDatapoints {
		script = scriptDevicesWithDatapoints
	}

	body, err := r.runScript(ctx, script)
	if err != nil {
		return nil, err
	}

	var devices []Device
	if err := json.Unmarshal(body, &devices); err != nil {
		return nil, fmt.Errorf("%w: parsing devices: %w", ErrDirectoryUnavailable, err)
	}

	r.cacheMu.Lock()
	r.devices = devices
	for _, device := range devices {
		for _, channel := range device.Channels {
			info := r.channels[channel.Address]
			info.ChannelName = channel.Name
			r.channels[channel.Address] = info
		}
	}
	r.cacheMu.Unlock()

	return devices, nil
}

// FetchRooms returns the room directory and merges room names into the
// cached channel metadata used by Lookup.
func (r *RegaClient) FetchRooms(ctx context.Context) ([]Room, error) {
	body, err := r.runScript(ctx, scriptRooms)
	if err != nil {
		return nil, err
	}

	var rooms []Room
	if err := json.Unmarshal(body, &rooms); err != nil {
		return nil, fmt.Errorf("%w: parsing rooms: %w", ErrDirectoryUnavailable, err)
	}

	// Channel IDs in the room directory are resolved against the cached
	// devices, so rooms merged before a device fetch simply resolve later.
	r.cacheMu.Lock()
	channelByID := make(map[string]string)
	for _, device := range r.devices {
		for _, channel := range device.Channels {
			channelByID[channel.ID] = channel.Address
		}
	}
	for _, room := range rooms {
		for _, channelID := range room.Channels {
			address, ok := channelByID[channelID]
			if !ok {
				continue
			}
			info := r.channels[address]
			info.Room = room.Name
			r.channels[address] = info
		}
	}
	for i := range r.devices {
		for j := range r.devices[i].Channels {
			channel := &r.devices[i].Channels[j]
			channel.Room = r.channels[channel.Address].Room
		}
	}
	r.cacheMu.Unlock()

	return rooms, nil
}

// FetchVariablesByIDs returns current snapshots of the given system variables.
//
// WasChanged is computed against the previous fetch of the same variable;
// the first fetch records a baseline and reports no change.
func (r *RegaClient) FetchVariablesByIDs(ctx context.Context, ids []string) ([]Variable, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body, err := r.runScript(ctx, buildObjectScript(scriptVariableTemplate, ids))
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Value      json.RawMessage `json:"value"`
		LastUpdate string          `json:"lastUpdate"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing variables: %w", ErrDirectoryUnavailable, err)
	}

	r.seenMu.Lock()
	defer r.seenMu.Unlock()

	variables := make([]Variable, 0, len(raw))
	for _, entry := range raw {
		lastUpdate, err := time.ParseInLocation(regaTimeLayout, entry.LastUpdate, time.Local)
		if err != nil {
			// Variable never set; skip silently.
			continue
		}

		previous, seen := r.varSeen[entry.ID]
		r.varSeen[entry.ID] = lastUpdate

		variables = append(variables, Variable{
			ID:         entry.ID,
			Name:       entry.Name,
			State:      coerceNumeric(entry.Value),
			WasChanged: seen && !lastUpdate.Equal(previous),
			LastUpdate: lastUpdate,
		})
	}

	return variables, nil
}

// FetchProgramsByIDs returns current snapshots of the given programs.
//
// LastRunChanged is computed against the previous fetch of the same program;
// the first fetch records a baseline and reports no change.
func (r *RegaClient) FetchProgramsByIDs(ctx context.Context, ids []string) ([]Program, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body, err := r.runScript(ctx, buildObjectScript(scriptProgramTemplate, ids))
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		LastRun string `json:"lastRun"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing programs: %w", ErrDirectoryUnavailable, err)
	}

	r.seenMu.Lock()
	defer r.seenMu.Unlock()

	programs := make([]Program, 0, len(raw))
	for _, entry := range raw {
		executed, err := time.ParseInLocation(regaTimeLayout, entry.LastRun, time.Local)
		if err != nil {
			// Program never ran; skip silently.
			continue
		}
		lastRun := executed.Unix()

		previous, seen := r.prgSeen[entry.ID]
		r.prgSeen[entry.ID] = lastRun

		programs = append(programs, Program{
			ID:             entry.ID,
			Name:           entry.Name,
			LastRun:        lastRun,
			LastRunChanged: seen && lastRun != previous,
		})
	}

	return programs, nil
}

// ClearCache drops the cached device directory.
func (r *RegaClient) ClearCache() {
	r.cacheMu.Lock()
	r.devices = nil
	r.channels = make(map[string]ChannelInfo)
	r.cacheMu.Unlock()
}

// coerceNumeric converts a Rega-reported value to float64.
// Booleans map to 1/0, numeric strings are parsed, everything else is 0.
func coerceNumeric(raw json.RawMessage) float64 {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}

	switch v := value.(type) {
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
