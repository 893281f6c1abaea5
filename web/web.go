// Package web serves a live preview of every camera as MJPEG, the current counts, the prometheus
// metrics and an endpoint to change distance thresholds while the pipelines run.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net"
	"net/http"
	"net/http/pprof"
	"sort"
	"sync"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"go.viam.com/utils"
	"goji.io"
	"goji.io/pat"

	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/services/distancing"
)

// DefaultJPEGQuality is used for preview frames.
const DefaultJPEGQuality = 75

// Cameras gives the server access to the running pipelines.
type Cameras interface {
	Pipeline(name string) (*distancing.Pipeline, bool)
	Pipelines() []*distancing.Pipeline
}

// Options configures a Server.
type Options struct {
	// Gatherer is exposed on /metrics. Nil disables the endpoint.
	Gatherer    prometheus.Gatherer
	JPEGQuality int
	Pprof       bool
}

// CameraStatus is the latest state of one camera as reported by /cameras.
type CameraStatus struct {
	Name      string    `json:"name"`
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
	People    int       `json:"people"`
	Serious   int       `json:"serious_violations"`
	Abnormal  int       `json:"abnormal_violations"`
	Warnings  int       `json:"warnings"`
	Stopped   bool      `json:"stopped"`
	Error     string    `json:"error,omitempty"`
}

// ThresholdsUpdate is the body of a threshold change. Absent fields are left unchanged.
type ThresholdsUpdate struct {
	MinDistance *float64 `json:"min_distance"`
	MaxDistance *float64 `json:"max_distance"`
}

type cameraView struct {
	stream *mjpeg.Stream
	status CameraStatus
	jpeg   []byte
}

// Server is a distancing.EventSink that keeps the latest annotated frame of every camera and
// serves it over HTTP.
type Server struct {
	cameras Cameras
	options Options
	logger  logging.Logger

	mu    sync.Mutex
	views map[string]*cameraView
}

// NewServer returns a server over the given cameras.
func NewServer(cameras Cameras, options Options, logger logging.Logger) *Server {
	if options.JPEGQuality <= 0 || options.JPEGQuality > 100 {
		options.JPEGQuality = DefaultJPEGQuality
	}
	s := &Server{cameras: cameras, options: options, logger: logger, views: map[string]*cameraView{}}
	for _, p := range cameras.Pipelines() {
		s.view(p.Handle())
	}
	return s
}

// view returns the view of a camera, creating it if needed. Callers hold mu or are the
// constructor.
func (s *Server) view(cam distancing.CameraHandle) *cameraView {
	v, ok := s.views[cam.Name]
	if !ok {
		v = &cameraView{
			stream: mjpeg.NewStream(),
			status: CameraStatus{Name: cam.Name, ID: cam.ID.String()},
		}
		s.views[cam.Name] = v
	}
	return v
}

func (s *Server) update(cam distancing.CameraHandle, f func(*cameraView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.view(cam))
}

// FrameReady encodes the annotated frame and pushes it to every preview client.
func (s *Server) FrameReady(cam distancing.CameraHandle, frame *distancing.AnnotatedFrame) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Annotated, &jpeg.Options{Quality: s.options.JPEGQuality}); err != nil {
		s.logger.Debugw("cannot encode preview frame", "camera", cam.Name, "error", err)
		return
	}
	var stream *mjpeg.Stream
	s.update(cam, func(v *cameraView) {
		v.jpeg = buf.Bytes()
		v.status.Seq = frame.Seq
		v.status.UpdatedAt = frame.CapturedAt
		stream = v.stream
	})
	stream.UpdateJPEG(buf.Bytes())
}

// PeopleCount records the count for /cameras.
func (s *Server) PeopleCount(cam distancing.CameraHandle, n int) {
	s.update(cam, func(v *cameraView) { v.status.People = n })
}

// SeriousViolationCount records the count for /cameras.
func (s *Server) SeriousViolationCount(cam distancing.CameraHandle, n int) {
	s.update(cam, func(v *cameraView) { v.status.Serious = n })
}

// ViolationCount records the count for /cameras.
func (s *Server) ViolationCount(cam distancing.CameraHandle, n int) {
	s.update(cam, func(v *cameraView) { v.status.Abnormal = n })
}

// Warning counts the warning for /cameras.
func (s *Server) Warning(cam distancing.CameraHandle, err error) {
	s.update(cam, func(v *cameraView) { v.status.Warnings++ })
}

// Stopped marks the camera as stopped.
func (s *Server) Stopped(cam distancing.CameraHandle, err error) {
	s.update(cam, func(v *cameraView) {
		v.status.Stopped = true
		if err != nil {
			v.status.Error = err.Error()
		}
	})
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.HandleFunc(pat.Get("/cameras"), s.handleCameras)
	mux.HandleFunc(pat.Get("/cameras/:name/stream.mjpeg"), s.handleStream)
	mux.HandleFunc(pat.Get("/cameras/:name/frame.jpg"), s.handleFrame)
	mux.HandleFunc(pat.Get("/cameras/:name/thresholds"), s.handleGetThresholds)
	mux.HandleFunc(pat.Put("/cameras/:name/thresholds"), s.handlePutThresholds)
	if s.options.Gatherer != nil {
		mux.Handle(pat.Get("/metrics"), promhttp.HandlerFor(s.options.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.options.Pprof {
		mux.HandleFunc(pat.New("/debug/pprof/"), pprof.Index)
		mux.HandleFunc(pat.New("/debug/pprof/cmdline"), pprof.Cmdline)
		mux.HandleFunc(pat.New("/debug/pprof/profile"), pprof.Profile)
		mux.HandleFunc(pat.New("/debug/pprof/symbol"), pprof.Symbol)
		mux.HandleFunc(pat.New("/debug/pprof/trace"), pprof.Trace)
	}
	return cors.AllowAll().Handler(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("cannot write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	statuses := make([]CameraStatus, 0, len(s.views))
	for _, v := range s.views {
		statuses = append(statuses, v.status)
	}
	s.mu.Unlock()
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	s.writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) lookupView(w http.ResponseWriter, r *http.Request) (*cameraView, bool) {
	name := pat.Param(r, "name")
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[name]
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.Errorf("no camera named %q", name))
	}
	return v, ok
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	v, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	v.stream.ServeHTTP(w, r)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	v, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	data := v.jpeg
	s.mu.Unlock()
	if data == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("no frame processed yet"))
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := w.Write(data); err != nil {
		s.logger.Debugw("cannot write frame", "error", err)
	}
}

func (s *Server) lookupPipeline(w http.ResponseWriter, r *http.Request) (*distancing.Pipeline, bool) {
	name := pat.Param(r, "name")
	p, ok := s.cameras.Pipeline(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.Errorf("no camera named %q", name))
	}
	return p, ok
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupPipeline(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, thresholdsBody(p))
}

func (s *Server) handlePutThresholds(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupPipeline(w, r)
	if !ok {
		return
	}
	var update ThresholdsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "cannot parse thresholds"))
		return
	}
	if (update.MinDistance != nil && *update.MinDistance < 0) || (update.MaxDistance != nil && *update.MaxDistance < 0) {
		s.writeError(w, http.StatusBadRequest, errors.New("thresholds cannot be negative"))
		return
	}
	th := p.Thresholds()
	if update.MinDistance != nil {
		if err := th.SetMinDistance(*update.MinDistance); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if update.MaxDistance != nil {
		if err := th.SetMaxDistance(*update.MaxDistance); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	s.logger.Infow("thresholds changed", "camera", p.Handle().Name, "thresholds", th.Snapshot())
	s.writeJSON(w, http.StatusOK, thresholdsBody(p))
}

func thresholdsBody(p *distancing.Pipeline) map[string]float64 {
	th := p.Thresholds().Snapshot()
	return map[string]float64{
		"min_distance":    th.MinDistance,
		"max_distance":    th.MaxDistance,
		"max_depth_delta": th.MaxDepthDelta,
	}
}

// Run serves on bindAddress until ctx is done.
func (s *Server) Run(ctx context.Context, bindAddress string) error {
	listener, err := net.Listen("tcp", bindAddress)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errorLog, err := zap.NewStdLogAt(s.logger.AsZap().Desugar(), zap.WarnLevel)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		ErrorLog:          errorLog,
		Addr:              listener.Addr().String(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           s.Handler(),
	}

	utils.PanicCapturingGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorw("error shutting down", "error", err)
		}
	})

	s.logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()))
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
