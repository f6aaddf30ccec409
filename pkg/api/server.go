// Package api exposes a read-only gin admin HTTP surface over a running
// node's overlay and AAI state: zone tree, cluster summary, transaction
// status. Grounded on the teacher's pkg/api/server.go router setup
// (gin.New + Logger/Recovery middleware + grouped routes), trimmed down
// to the observability endpoints this spec actually calls for — no
// model registry, no auth, no websockets (§ Non-goals excludes the
// outer model-serving surface entirely).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jcelaya/stars-sub002/pkg/availability"
)

// NodeView is whatever the API needs to read off a running overlay.Node
// and its paired availability.Summary without taking a hard dependency
// on the process wiring that owns them.
type NodeView interface {
	Self() string
	InteriorState() string
	Level() uint32
	Father() (string, bool)
	Children() []ChildView
	Summary() *availability.Summary
}

// ChildView is one row of a node's child list, as the API reports it.
type ChildView struct {
	Link      string `json:"link"`
	Populated bool   `json:"populated"`
	MinAddr   string `json:"min_addr,omitempty"`
	MaxAddr   string `json:"max_addr,omitempty"`
	Available uint32 `json:"available_str_nodes"`
}

// Server is the admin HTTP server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	view       NodeView
}

// New builds a Server bound to listen, serving read-only views of view.
func New(listen string, timeout time.Duration, view NodeView) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{router: router, view: view}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/v1")
	v1.GET("/node", s.getNode)
	v1.GET("/node/children", s.getChildren)
	v1.GET("/node/clusters", s.getClusters)
	v1.GET("/healthz", s.getHealth)
}

func (s *Server) getNode(c *gin.Context) {
	father, hasFather := s.view.Father()
	resp := gin.H{
		"self":           s.view.Self(),
		"interior_state": s.view.InteriorState(),
		"level":          s.view.Level(),
	}
	if hasFather {
		resp["father"] = father
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getChildren(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"children": s.view.Children()})
}

func (s *Server) getClusters(c *gin.Context) {
	sum := s.view.Summary()
	if sum == nil {
		c.JSON(http.StatusOK, gin.H{"clusters": []any{}})
		return
	}
	type clusterRow struct {
		Population uint32 `json:"population"`
	}
	rows := make([]clusterRow, 0, len(sum.Clusters))
	for _, cl := range sum.Clusters {
		rows = append(rows, clusterRow{Population: cl.Population()})
	}
	c.JSON(http.StatusOK, gin.H{"clusters": rows})
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the server in the background.
func (s *Server) Start(onError func(error)) {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed && onError != nil {
			onError(err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
