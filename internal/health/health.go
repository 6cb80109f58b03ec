package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// TaskStatus is the last reported state of one background task.
type TaskStatus struct {
	Name     string    `json:"name"`
	LastTick time.Time `json:"last_tick"`
	Healthy  bool      `json:"healthy"`
}

var (
	isReady      int32
	taskStatuses = make(map[string]*TaskStatus)
	statusMutex  sync.RWMutex
)

func SetReady(ready bool) {
	if ready {
		atomic.StoreInt32(&isReady, 1)
	} else {
		atomic.StoreInt32(&isReady, 0)
	}
}

// ReportTick records a heartbeat for a background task.
func ReportTick(name string, healthy bool) {
	statusMutex.Lock()
	defer statusMutex.Unlock()
	taskStatuses[name] = &TaskStatus{
		Name:     name,
		LastTick: time.Now().UTC(),
		Healthy:  healthy,
	}
}

func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	statusMutex.RLock()
	defer statusMutex.RUnlock()

	if atomic.LoadInt32(&isReady) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))

		return
	}

	response := make(map[string]interface{})
	response["status"] = "Ready"
	response["tasks"] = taskStatuses

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
