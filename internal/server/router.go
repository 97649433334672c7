// Package server exposes a thin gin-based admin HTTP surface over a
// Scheduler: read-only registry/execution inspection plus force-start.
// It is pure hosting glue over the public Scheduler contract (§6: "the
// scheduler has no wire protocol, no CLI... its external surface is its
// in-process object contract"), grounded on the teacher's router.go.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/jobsched/internal/definition"
	"github.com/loykin/jobsched/internal/execution"
	"github.com/loykin/jobsched/internal/scheduler"
)

// Router provides embeddable HTTP handlers for inspecting a Scheduler.
// Endpoints:
//
//	GET  {basePath}/jobs                   list registered definitions
//	GET  {basePath}/jobs/:id/executions    list executions for a definition
//	POST {basePath}/jobs/:id/force-start   flag a definition for immediate dispatch
type Router struct {
	sched    *scheduler.Scheduler
	basePath string
}

// NewRouter constructs a Router. basePath may be empty or start with '/'
// with no trailing slash; it is sanitized regardless.
func NewRouter(sched *scheduler.Scheduler, basePath string) *Router {
	return &Router{sched: sched, basePath: sanitizeBase(basePath)}
}

func sanitizeBase(basePath string) string {
	if basePath == "" || basePath == "/" {
		return ""
	}
	if basePath[0] != '/' {
		basePath = "/" + basePath
	}
	for len(basePath) > 1 && basePath[len(basePath)-1] == '/' {
		basePath = basePath[:len(basePath)-1]
	}
	return basePath
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/jobs", r.handleListJobs)
	group.GET("/jobs/:id/executions", r.handleListExecutions)
	group.POST("/jobs/:id/force-start", r.handleForceStart)
	return g
}

// NewServer starts a standalone HTTP server on addr serving this router.
func NewServer(addr, basePath string, sched *scheduler.Scheduler) (*http.Server, error) {
	r := NewRouter(sched, basePath)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	case <-time.After(100 * time.Millisecond):
	}

	return srv, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type jobView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Overlap bool   `json:"overlap"`
	Cron    string `json:"cron,omitempty"`
}

func toJobView(d definition.Definition) jobView {
	v := jobView{ID: d.ID(), Name: d.Name(), Overlap: d.ExecutionsCanOverlap()}
	if sched := d.Schedule(); sched != nil {
		v.Cron = sched.CronExpr()
	}
	return v
}

type executionView struct {
	ID             string     `json:"id"`
	DefinitionID   string     `json:"definition_id"`
	DefinitionName string     `json:"definition_name"`
	StartTime      time.Time  `json:"start_time"`
	Running        bool       `json:"running"`
	FinishTime     *time.Time `json:"finish_time,omitempty"`
	Success        *bool      `json:"success,omitempty"`
	Error          string     `json:"error,omitempty"`
}

func toExecutionView(ex *execution.Execution) executionView {
	v := executionView{
		ID:             ex.ID(),
		DefinitionID:   ex.DefinitionID(),
		DefinitionName: ex.DefinitionName(),
		StartTime:      ex.StartTime(),
		Running:        ex.Running(),
	}
	if ft, ok := ex.FinishTime(); ok {
		v.FinishTime = &ft
		success := ex.Success()
		v.Success = &success
		if err := ex.Err(); err != nil {
			v.Error = err.Error()
		}
	}
	return v
}

func (r *Router) handleListJobs(c *gin.Context) {
	defs := r.sched.Get()
	views := make([]jobView, 0, len(defs))
	for _, d := range defs {
		views = append(views, toJobView(d))
	}
	c.JSON(http.StatusOK, views)
}

func (r *Router) handleListExecutions(c *gin.Context) {
	id := c.Param("id")
	if _, ok := r.sched.GetByID(id); !ok {
		c.JSON(http.StatusNotFound, errorResp{Error: "unknown job id"})
		return
	}

	execs := r.sched.GetExecutions(id, nil)
	views := make([]executionView, 0, len(execs))
	for _, ex := range execs {
		views = append(views, toExecutionView(ex))
	}
	c.JSON(http.StatusOK, views)
}

func (r *Router) handleForceStart(c *gin.Context) {
	id := c.Param("id")
	if _, ok := r.sched.GetByID(id); !ok {
		c.JSON(http.StatusNotFound, errorResp{Error: "unknown job id"})
		return
	}
	r.sched.ForceStart(id)
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}
