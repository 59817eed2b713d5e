// Package fakeserver is an in-memory stand-in for the csv mapper web
// application: login form, dashboard pages carrying a CSRF token, and the
// JSON API with its success/error envelopes.
package fakeserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
)

const (
	Token         = "fake-csrf-token-0123456789"
	SessionCookie = "sessionid"
	CSRFCookie    = "csrftoken"
)

// Request is a recorded request.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// JSON decodes the recorded body into a generic map.
func (r Request) JSON() map[string]any {
	var out map[string]any
	_ = json.Unmarshal(r.Body, &out)
	return out
}

// Server is the fake application.
type Server struct {
	*httptest.Server

	Username string
	Password string
	// OpenAccess disables the login and CSRF checks on the API.
	OpenAccess bool

	mu       sync.Mutex
	requests []Request
	sessions map[string]bool
	nextID   int
	sources  map[int]schemas.Source
	columns  map[int][]schemas.SourceColumn
	graphs   map[int]schemas.Graph
	datasets map[int]map[int]schemas.Dataset
	override map[string]http.HandlerFunc
}

// New starts a server that is closed with the test.
func New(t testing.TB) *Server {
	s := &Server{
		Username: "analyst",
		Password: "correct horse",
		sessions: map[string]bool{},
		sources:  map[int]schemas.Source{},
		columns:  map[int][]schemas.SourceColumn{},
		graphs:   map[int]schemas.Graph{},
		datasets: map[int]map[int]schemas.Dataset{},
		override: map[string]http.HandlerFunc{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle replaces the handler for an exact path.
func (s *Server) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override[path] = h
}

// Requests returns every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// APIRequests returns the recorded requests under /api/.
func (s *Server) APIRequests() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if strings.HasPrefix(r.Path, "/api/") {
			out = append(out, r)
		}
	}
	return out
}

// LastAPIRequest returns the most recent API request.
func (s *Server) LastAPIRequest() (Request, bool) {
	reqs := s.APIRequests()
	if len(reqs) == 0 {
		return Request{}, false
	}
	return reqs[len(reqs)-1], true
}

// -- Seeding --

func (s *Server) AddSource(src schemas.Source, cols ...schemas.SourceColumn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	src.ID = s.nextID
	s.sources[src.ID] = src
	s.columns[src.ID] = cols
	return src.ID
}

func (s *Server) AddGraph(g schemas.Graph) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	g.ID = s.nextID
	s.graphs[g.ID] = g
	s.datasets[g.ID] = map[int]schemas.Dataset{}
	return g.ID
}

func (s *Server) AddDataset(graphID int, d schemas.Dataset) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d.ID = s.nextID
	s.datasets[graphID][d.ID] = d
	return d.ID
}

// Column builds a source column from literal cells; "" becomes null.
func Column(name string, cells ...string) schemas.SourceColumn {
	col := schemas.SourceColumn{Name: name, Data: make([]*string, len(cells))}
	for i := range cells {
		if cells[i] != "" {
			col.Data[i] = &cells[i]
		}
	}
	return col
}

// -- Routing --

var (
	sourceDetail  = regexp.MustCompile(`^/api/source/(\d+)/$`)
	sourceData    = regexp.MustCompile(`^/api/source/(\d+)/data/$`)
	graphDetail   = regexp.MustCompile(`^/api/graph/(\d+)/$`)
	graphData     = regexp.MustCompile(`^/api/graph/(\d+)/data/$`)
	datasetList   = regexp.MustCompile(`^/api/graph/(\d+)/dataset/$`)
	datasetDetail = regexp.MustCompile(`^/api/graph/(\d+)/dataset/(\d+)/$`)
)

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone(), Body: body,
	})
	h := s.override[r.URL.Path]
	s.mu.Unlock()

	if h != nil {
		h(w, r)
		return
	}

	switch {
	case r.URL.Path == "/account/login/":
		s.login(w, r)
	case r.URL.Path == "/" || r.URL.Path == "/graphs" || r.URL.Path == "/sources":
		s.dashboard(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/"):
		s.api(w, r, body)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) authenticated(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[c.Value]
}

func csrfCookieMatches(r *http.Request, token string) bool {
	c, err := r.Cookie(CSRFCookie)
	return err == nil && c.Value == token && token == Token
}

// -- Pages --

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: Token, Path: "/"})
	if r.Method != http.MethodPost {
		writeLoginPage(w, "")
		return
	}
	_ = r.ParseForm()
	if !csrfCookieMatches(r, r.PostForm.Get("csrfmiddlewaretoken")) {
		http.Error(w, "CSRF verification failed. Request aborted.", http.StatusForbidden)
		return
	}
	if r.PostForm.Get("username") != s.Username || r.PostForm.Get("password") != s.Password {
		writeLoginPage(w, "Please enter a correct username and password. Note that both fields may be case-sensitive.")
		return
	}

	s.mu.Lock()
	s.nextID++
	session := fmt.Sprintf("session-%d", s.nextID)
	s.sessions[session] = true
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: session, Path: "/", HttpOnly: true})
	http.Redirect(w, r, "/", http.StatusFound)
}

func writeLoginPage(w http.ResponseWriter, errText string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	errors := ""
	if errText != "" {
		errors = `<ul class="errorlist nonfield"><li>` + html.EscapeString(errText) + `</li></ul>`
	}
	fmt.Fprintf(w, `<!doctype html><html><head><title>Login</title></head><body>
<form method="post" action="/account/login/">
  <input type="hidden" name="csrfmiddlewaretoken" value="%s">
  %s
  <input type="text" name="username" autofocus required>
  <input type="password" name="password" required>
  <button type="submit">Log in</button>
</form></body></html>`, Token, errors)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	if !s.OpenAccess && !s.authenticated(r) {
		http.Redirect(w, r, "/account/login/?next="+r.URL.Path, http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: Token, Path: "/"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html><html><head><title>Dashboard</title></head><body>
<form id="csrf"><input type="hidden" name="csrfmiddlewaretoken" value="%s"></form>
<canvas id="chart"></canvas>
</body></html>`, Token)
}

// -- API --

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func success(w http.ResponseWriter, data any, message string) {
	body := map[string]any{"result": "success"}
	if data != nil {
		body["data"] = data
	}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, http.StatusOK, body)
}

func failure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"result": "error", "message": message})
}

func (s *Server) api(w http.ResponseWriter, r *http.Request, body []byte) {
	if !s.OpenAccess {
		if !s.authenticated(r) {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !csrfCookieMatches(r, r.Header.Get("X-CSRFToken")) {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed: CSRF token missing or incorrect."})
			return
		}
	}

	path := r.URL.Path
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case path == "/api/source/":
		s.sourceCollection(w, r, body)
	case sourceDetail.MatchString(path):
		s.sourceItem(w, r, body, atoi(sourceDetail.FindStringSubmatch(path)[1]))
	case sourceData.MatchString(path):
		id := atoi(sourceData.FindStringSubmatch(path)[1])
		if _, ok := s.sources[id]; !ok {
			failure(w, http.StatusNotFound, fmt.Sprintf("Source `%d` not found.", id))
			return
		}
		success(w, s.columns[id], "")
	case path == "/api/graph/":
		s.graphCollection(w, r, body)
	case graphDetail.MatchString(path):
		s.graphItem(w, r, body, atoi(graphDetail.FindStringSubmatch(path)[1]))
	case graphData.MatchString(path):
		s.graphData(w, atoi(graphData.FindStringSubmatch(path)[1]))
	case datasetList.MatchString(path):
		s.datasetCollection(w, r, body, atoi(datasetList.FindStringSubmatch(path)[1]))
	case datasetDetail.MatchString(path):
		m := datasetDetail.FindStringSubmatch(path)
		s.datasetItem(w, r, body, atoi(m[1]), atoi(m[2]))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (s *Server) sourceCollection(w http.ResponseWriter, r *http.Request, body []byte) {
	switch r.Method {
	case http.MethodGet:
		out := []schemas.Source{}
		for _, id := range sortedKeys(s.sources) {
			out = append(out, s.sources[id])
		}
		success(w, out, "")
	case http.MethodPost:
		var src schemas.Source
		if json.Unmarshal(body, &src) != nil {
			failure(w, http.StatusBadRequest, "Invalid JSON request body.")
			return
		}
		s.nextID++
		src.ID = s.nextID
		s.sources[src.ID] = src
		success(w, nil, "The source was created successfully.")
	default:
		failure(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method `%s` is not supported.", r.Method))
	}
}

func (s *Server) sourceItem(w http.ResponseWriter, r *http.Request, body []byte, id int) {
	src, ok := s.sources[id]
	if !ok {
		failure(w, http.StatusNotFound, fmt.Sprintf("Source `%d` not found.", id))
		return
	}
	switch r.Method {
	case http.MethodGet:
		src.ID = 0
		success(w, src, "")
	case http.MethodPut:
		var upd schemas.Source
		if json.Unmarshal(body, &upd) != nil {
			failure(w, http.StatusBadRequest, "Invalid JSON request body.")
			return
		}
		upd.ID = id
		s.sources[id] = upd
		success(w, nil, fmt.Sprintf("Updated source `%d`.", id))
	case http.MethodDelete:
		delete(s.sources, id)
		success(w, nil, fmt.Sprintf("Deleted source `%d`.", id))
	default:
		failure(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method `%s` is not supported.", r.Method))
	}
}

func (s *Server) graphCollection(w http.ResponseWriter, r *http.Request, body []byte) {
	switch r.Method {
	case http.MethodGet:
		out := []schemas.Graph{}
		for _, id := range sortedKeys(s.graphs) {
			out = append(out, s.graphs[id])
		}
		success(w, out, "")
	case http.MethodPost:
		var g schemas.Graph
		if json.Unmarshal(body, &g) != nil {
			failure(w, http.StatusBadRequest, "Invalid JSON request body.")
			return
		}
		s.nextID++
		g.ID = s.nextID
		s.graphs[g.ID] = g
		s.datasets[g.ID] = map[int]schemas.Dataset{}
		success(w, nil, "The graph was created successfully.")
	default:
		failure(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method `%s` is not supported.", r.Method))
	}
}

func (s *Server) graphItem(w http.ResponseWriter, r *http.Request, body []byte, id int) {
	g, ok := s.graphs[id]
	if !ok {
		failure(w, http.StatusNotFound, fmt.Sprintf("Graph `%d` not found.", id))
		return
	}
	switch r.Method {
	case http.MethodGet:
		g.ID = 0
		success(w, g, "")
	case http.MethodPut:
		var upd schemas.Graph
		if json.Unmarshal(body, &upd) != nil {
			failure(w, http.StatusBadRequest, "Invalid JSON request body.")
			return
		}
		upd.ID = id
		s.graphs[id] = upd
		success(w, nil, fmt.Sprintf("Updated graph `%d`.", id))
	case http.MethodDelete:
		delete(s.graphs, id)
		delete(s.datasets, id)
		success(w, nil, fmt.Sprintf("Deleted graph `%d`.", id))
	default:
		failure(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method `%s` is not supported.", r.Method))
	}
}

func (s *Server) datasetCollection(w http.ResponseWriter, r *http.Request, body []byte, graphID int) {
	sets, ok := s.datasets[graphID]
	if !ok {
		failure(w, http.StatusNotFound, fmt.Sprintf("Graph `%d` not found.", graphID))
		return
	}
	switch r.Method {
	case http.MethodGet:
		out := []schemas.Dataset{}
		for _, id := range sortedKeys(sets) {
			d := sets[id]
			d.SourceName = s.sources[d.SourceID].Name
			out = append(out, d)
		}
		success(w, out, "")
	case http.MethodPost:
		var d schemas.Dataset
		if json.Unmarshal(body, &d) != nil {
			failure(w, http.StatusBadRequest, "Invalid JSON request body.")
			return
		}
		if _, ok := s.sources[d.SourceID]; !ok {
			failure(w, http.StatusNotFound, fmt.Sprintf("Source `%d` not found.", d.SourceID))
			return
		}
		s.nextID++
		d.ID = s.nextID
		sets[d.ID] = d
		success(w, "Created dataset.", "")
	default:
		failure(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method `%s` is not supported.", r.Method))
	}
}

func (s *Server) datasetItem(w http.ResponseWriter, r *http.Request, body []byte, graphID, datasetID int) {
	d, ok := s.datasets[graphID][datasetID]
	if !ok {
		failure(w, http.StatusNotFound, fmt.Sprintf("Graph dataset `%d` not found.", datasetID))
		return
	}
	switch r.Method {
	case http.MethodGet:
		d.ID = 0
		d.SourceName = s.sources[d.SourceID].Name
		success(w, d, "")
	case http.MethodPut:
		var upd schemas.Dataset
		if json.Unmarshal(body, &upd) != nil {
			failure(w, http.StatusBadRequest, "Invalid JSON request body.")
			return
		}
		upd.ID = datasetID
		s.datasets[graphID][datasetID] = upd
		success(w, nil, fmt.Sprintf("Updated graph dataset `%d`.", datasetID))
	case http.MethodDelete:
		delete(s.datasets[graphID], datasetID)
		success(w, nil, fmt.Sprintf("Deleted graph dataset `%d`.", datasetID))
	default:
		failure(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method `%s` is not supported.", r.Method))
	}
}

// graphData assembles the chart payload the way the application does: the
// axis dataset supplies labels and an x scale title, plotted datasets become
// series without their trailing nulls, and "none" datasets are skipped.
func (s *Server) graphData(w http.ResponseWriter, graphID int) {
	sets, ok := s.datasets[graphID]
	if !ok {
		failure(w, http.StatusNotFound, fmt.Sprintf("Graph `%d` not found.", graphID))
		return
	}
	cfg := schemas.ChartConfig{Data: schemas.ChartData{Datasets: []schemas.ChartDataset{}}}
	scales := map[string]schemas.ChartScale{"x": {}, "y": {}}
	hideScales := true

	for _, id := range sortedKeys(sets) {
		d := sets[id]
		if !d.IsAxis && d.PlotType == schemas.PlotNone {
			continue
		}
		cols := s.columns[d.SourceID]
		if d.ColumnID < 0 || d.ColumnID >= len(cols) {
			failure(w, http.StatusBadRequest, fmt.Sprintf("Column is out of bounds (value: `%d`, min: `0`, max: `%d`).", d.ColumnID, len(cols)))
			return
		}
		cells := cols[d.ColumnID].Data
		if d.IsAxis {
			cfg.Data.Labels = cells
			scales["x"] = schemas.ChartScale{Title: &schemas.ChartScaleTitle{Display: true, Text: d.Label}}
			continue
		}
		cfg.Data.Datasets = append(cfg.Data.Datasets, schemas.ChartDataset{
			Type: d.PlotType.ChartType(), Label: d.Label, Data: trimTrailingNulls(cells),
		})
		switch d.PlotType {
		case schemas.PlotLine, schemas.PlotBar, schemas.PlotScatter:
			hideScales = false
		}
	}
	if !hideScales {
		cfg.Options.Scales = scales
	}
	success(w, cfg, "")
}

func trimTrailingNulls(cells []*string) []*string {
	end := len(cells)
	for end > 0 && cells[end-1] == nil {
		end--
	}
	return cells[:end]
}
