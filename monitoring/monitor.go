// Package monitoring serves the progress of a replay over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachewarm/mem/hierarchy"
	"github.com/sarchlab/cachewarm/monitoring/web"
)

// A StatsSource reports the stats of every core.
type StatsSource interface {
	Stats() []hierarchy.Stats
	CoreStats(coreID int) (hierarchy.Stats, bool)
}

// Monitor turns a replay into a server that reports how the caches warm up.
type Monitor struct {
	source      StatsSource
	portNumber  int
	openBrowser bool

	registry *prometheus.Registry
	gauges   map[string]*prometheus.GaugeVec

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}

	m.registerGauges()

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open its page in a browser once it starts.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterStatsSource sets where the per-core stats come from.
func (m *Monitor) RegisterStatsSource(s StatsSource) {
	m.source = s
}

// registerGauges creates a gauge for every field of the stats tagged with
// `gauge` and `gauge_help`.
func (m *Monitor) registerGauges() {
	statsType := reflect.TypeOf(hierarchy.Stats{})
	for i := 0; i < statsType.NumField(); i++ {
		tags := statsType.Field(i).Tag
		g, gh := tags.Get("gauge"), tags.Get("gauge_help")

		if g == "" || gh == "" {
			continue
		}

		m.gauges[g] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: g,
			Help: gh,
		}, []string{"core"})
		m.registry.MustRegister(m.gauges[g])
	}
}

func (m *Monitor) updateMetrics() {
	if m.source == nil {
		return
	}

	for core, stats := range m.source.Stats() {
		statsType := reflect.TypeOf(stats)
		statsValue := reflect.ValueOf(stats)

		for i := 0; i < statsType.NumField(); i++ {
			gaugeVec, ok := m.gauges[statsType.Field(i).Tag.Get("gauge")]
			if !ok {
				continue
			}

			metric, err := gaugeVec.GetMetricWithLabelValues(strconv.Itoa(core))
			if err != nil {
				log.Println(err)
				continue
			}

			metric.Set(float64(statsValue.Field(i).Uint()))
		}
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) createRouter() *mux.Router {
	r := mux.NewRouter()

	promHandler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	fServer := http.FileServer(web.GetAssets())
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/cores", m.listCores)
	r.HandleFunc("/api/core/{id}", m.coreDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		m.updateMetrics()
		promHandler.ServeHTTP(w, req)
	})
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	http.Handle("/", m.createRouter())

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring replay with %s\n", url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	if m.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}
}

func (m *Monitor) listCores(w http.ResponseWriter, _ *http.Request) {
	stats := []hierarchy.Stats{}
	if m.source != nil {
		stats = m.source.Stats()
	}

	bytes, err := json.Marshal(stats)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) findCoreOr404(
	w http.ResponseWriter,
	idStr string,
) (*hierarchy.Stats, bool) {
	id, err := strconv.Atoi(idStr)
	if err == nil && m.source != nil {
		stats, found := m.source.CoreStats(id)
		if found {
			return &stats, true
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err = w.Write([]byte("Core not found"))
	dieOnErr(err)

	return nil, false
}

func (m *Monitor) coreDetails(w http.ResponseWriter, r *http.Request) {
	stats, found := m.findCoreOr404(w, mux.Vars(r)["id"])
	if !found {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(stats)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	Core      int    `json:"core"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	stats, found := m.findCoreOr404(w, strconv.Itoa(req.Core))
	if !found {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(stats)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bytes, err := json.Marshal(m.progressBars)
	m.progressBarsLock.Unlock()
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
