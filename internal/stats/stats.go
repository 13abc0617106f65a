// Package stats keeps process counters for rooms and websocket sessions
// and serves them as JSON.
package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"runtime"
	"sync"
	"time"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// Counter names used by the room store.
const (
	NumActiveRooms   = "NumActiveRooms"
	NumActiveClients = "NumActiveClients"
	NumReapedRooms   = "NumReapedRooms"
)

const statsMapName = "tactics-stats"

type delta struct {
	name  string
	value int64
}

// StatsUpdater applies counter changes on a single goroutine started by
// Run. Changes sent after Stop are dropped.
type StatsUpdater struct {
	vars     *expvar.Map
	deltas   chan delta
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := newStatsUpdater(expvarMap())
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.serveVars))
	return su
}

func newStatsUpdater(vars *expvar.Map) *StatsUpdater {
	su := &StatsUpdater{
		vars:    vars,
		deltas:  make(chan delta, 512),
		stopped: make(chan struct{}),
	}

	started := time.Now()
	su.vars.Set("UptimeMillis", expvar.Func(func() any {
		return time.Since(started).Milliseconds()
	}))
	su.vars.Set("Goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	return su
}

// expvarMap returns the published map, reusing it when the process has
// already created one.
func expvarMap() *expvar.Map {
	if v, ok := expvar.Get(statsMapName).(*expvar.Map); ok {
		return v
	}
	return expvar.NewMap(statsMapName)
}

func (su *StatsUpdater) serveVars(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(su.Snapshot())
}

// Snapshot decodes every published value.
func (su *StatsUpdater) Snapshot() map[string]any {
	out := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		if err := json.Unmarshal([]byte(kv.Value.String()), &value); err != nil {
			value = kv.Value.String()
		}
		out[kv.Key] = value
	})
	return out
}

func (su *StatsUpdater) apply(d delta) {
	// counters that were never registered are created on first use
	su.vars.Add(d.name, d.value)
}

func (su *StatsUpdater) loop() {
	for {
		select {
		case d := <-su.deltas:
			su.apply(d)
		case <-su.stopped:
			for {
				select {
				case d := <-su.deltas:
					su.apply(d)
				default:
					return
				}
			}
		}
	}
}

func (su *StatsUpdater) send(name string, value int64) {
	select {
	case <-su.stopped:
		return
	default:
	}

	select {
	case su.deltas <- delta{name: name, value: value}:
	case <-su.stopped:
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.send(name, 1)
}

func (su *StatsUpdater) Decr(name string) {
	su.send(name, -1)
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.loop()
}

// Stop ends the update loop after applying what was already queued.
func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() { close(su.stopped) })
}
