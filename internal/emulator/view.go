// Package emulator implements management API for local usage and tests.
package emulator

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/udovin/gosql"

	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/management"
	"github.com/udovin/cloudctl/internal/pkg/logs"
)

// View represents management API view.
type View struct {
	db       *gosql.DB
	clusters *ClusterStore
	addons   *AddOnStore
	token    string
	// mutex serializes create operations to detect duplicates.
	mutex sync.Mutex
	now   func() time.Time
}

// NewView returns a new instance of view.
//
// Empty token disables authorization.
func NewView(db *gosql.DB, token string) *View {
	return &View{
		db:       db,
		clusters: NewClusterStore(db),
		addons:   NewAddOnStore(db),
		token:    token,
		now:      time.Now,
	}
}

// NewServer returns echo server with logger and default middlewares.
func NewServer(logger *logs.Logger) *echo.Echo {
	srv := echo.New()
	srv.Logger = logger
	srv.HideBanner, srv.HidePort = true, true
	srv.Pre(middleware.RemoveTrailingSlash())
	srv.Use(middleware.Recover(), wrapResponse)
	return srv
}

// Register registers handlers in specified group.
func (v *View) Register(g *echo.Group) {
	g.GET("/ping", v.ping)
	g.GET("/health", v.health)
	api := g.Group("/v0", v.requireToken)
	api.GET("/clusters", v.observeClusters)
	api.POST("/clusters", v.createCluster)
	api.GET("/clusters/:cluster", v.observeCluster)
	api.DELETE("/clusters/:cluster", v.deleteCluster)
	api.GET("/addons", v.observeAddOns)
	api.POST("/addons", v.createAddOn)
	api.GET("/addons/:addon", v.observeAddOn)
	api.DELETE("/addons/:addon", v.deleteAddOn)
}

func (v *View) ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// health returns current healthiness status.
func (v *View) health(c echo.Context) error {
	if err := v.db.PingContext(c.Request().Context()); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, "unhealthy")
	}
	return c.String(http.StatusOK, "healthy")
}

func (v *View) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if v.token == "" {
			return next(c)
		}
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || subtle.ConstantTimeCompare([]byte(token), []byte(v.token)) != 1 {
			return &management.ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: "unable to authorize",
			}
		}
		return next(c)
	}
}

func (v *View) observeClusters(c echo.Context) error {
	clusters, err := v.clusters.All(c.Request().Context())
	if err != nil {
		return err
	}
	resp := management.Clusters{Clusters: clusters}
	if resp.Clusters == nil {
		resp.Clusters = []management.Cluster{}
	}
	return c.JSON(http.StatusOK, resp)
}

func (v *View) observeCluster(c echo.Context) error {
	name := c.Param("cluster")
	cluster, err := v.clusters.Get(c.Request().Context(), name)
	if err != nil {
		return wrapNotFound(err, "cluster %q not found", name)
	}
	return c.JSON(http.StatusOK, cluster)
}

func (v *View) createCluster(c echo.Context) error {
	var form management.CreateClusterForm
	if err := c.Bind(&form); err != nil {
		c.Logger().Warn(err)
		return &management.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid form",
		}
	}
	if err := form.Validate(); err != nil {
		return err
	}
	cluster := management.Cluster{
		Name:                    form.Name,
		Location:                form.Location,
		State:                   management.RunningState,
		NodeCount:               form.NodeCount,
		Version:                 form.Version,
		ConnectionURL:           fmt.Sprintf("https://%s.cluster.local", strings.ToLower(form.Name)),
		HTTPUserName:            form.HTTPUserName,
		DefaultStorageAccount:   form.DefaultStorageAccount,
		DefaultStorageContainer: form.DefaultStorageContainer,
		CreateTime:              v.now().Unix(),
	}
	if cluster.Version == "" {
		cluster.Version = management.DefaultClusterVersion
	}
	ctx := c.Request().Context()
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if _, err := v.clusters.Get(ctx, cluster.Name); err == nil {
		return &management.ErrorResponse{
			Code:    http.StatusConflict,
			Message: fmt.Sprintf("cluster %q already exists", cluster.Name),
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := v.clusters.Create(ctx, cluster); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cluster)
}

func (v *View) deleteCluster(c echo.Context) error {
	name := c.Param("cluster")
	ctx := c.Request().Context()
	cluster, err := v.clusters.Get(ctx, name)
	if err != nil {
		return wrapNotFound(err, "cluster %q not found", name)
	}
	if err := v.clusters.Delete(ctx, name); err != nil {
		return wrapNotFound(err, "cluster %q not found", name)
	}
	return c.JSON(http.StatusOK, cluster)
}

func (v *View) observeAddOns(c echo.Context) error {
	addons, err := v.addons.All(c.Request().Context())
	if err != nil {
		return err
	}
	resp := management.AddOns{AddOns: addons}
	if resp.AddOns == nil {
		resp.AddOns = []management.AddOn{}
	}
	return c.JSON(http.StatusOK, resp)
}

func (v *View) observeAddOn(c echo.Context) error {
	name := c.Param("addon")
	addon, err := v.addons.Get(c.Request().Context(), name)
	if err != nil {
		return wrapNotFound(err, "add-on %q not found", name)
	}
	return c.JSON(http.StatusOK, addon)
}

func (v *View) createAddOn(c echo.Context) error {
	var form management.CreateAddOnForm
	if err := c.Bind(&form); err != nil {
		c.Logger().Warn(err)
		return &management.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid form",
		}
	}
	if err := form.Validate(); err != nil {
		return err
	}
	addon := management.AddOn{
		Name:     form.Name,
		Type:     form.Type,
		Plan:     form.Plan,
		Location: form.Location,
		State:    management.RunningState,
	}
	ctx := c.Request().Context()
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if _, err := v.addons.Get(ctx, addon.Name); err == nil {
		return &management.ErrorResponse{
			Code:    http.StatusConflict,
			Message: fmt.Sprintf("add-on %q already exists", addon.Name),
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := v.addons.Create(ctx, addon); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, addon)
}

func (v *View) deleteAddOn(c echo.Context) error {
	name := c.Param("addon")
	ctx := c.Request().Context()
	addon, err := v.addons.Get(ctx, name)
	if err != nil {
		return wrapNotFound(err, "add-on %q not found", name)
	}
	if err := v.addons.Delete(ctx, name); err != nil {
		return wrapNotFound(err, "add-on %q not found", name)
	}
	return c.JSON(http.StatusOK, addon)
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &management.ErrorResponse{
			Code:    http.StatusNotFound,
			Message: fmt.Sprintf(format, args...),
		}
	}
	return err
}

type statusCodeResponse interface {
	StatusCode() int
}

var (
	rnd      = rand.NewSource(time.Now().UnixNano())
	rndMutex = sync.Mutex{}
)

func randUint32() uint32 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return uint32(rnd.Int63() >> 32)
}

func wrapResponse(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Request().Header.Get(echo.HeaderXRequestID)
		if reqID == "" {
			reqID = fmt.Sprintf("%d-%d", time.Now().UnixMilli(), randUint32())
		}
		logger, ok := c.Logger().(*logs.Logger)
		if !ok {
			logger = logs.NewLogger()
		}
		logger = logger.With(logs.Any("req_id", reqID))
		c.SetLogger(logger)
		c.Response().Header().Add(echo.HeaderXRequestID, reqID)
		c.Response().Header().Add("X-Cloudctl-Version", config.Version)
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		var resp statusCodeResponse
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &resp):
			status = resp.StatusCode()
			if status == 0 {
				status = http.StatusInternalServerError
			}
		case errors.As(err, &httpErr):
			status = httpErr.Code
		case err != nil:
			status = http.StatusInternalServerError
		}
		defer func() {
			message := fmt.Sprintf("%s %s", c.Request().Method, c.Request().RequestURI)
			args := []any{
				message,
				logs.Any("status", status),
				logs.Any("method", c.Request().Method),
				logs.Any("path", c.Path()),
				logs.Any("remote_ip", c.RealIP()),
				logs.Any("latency", time.Since(start).String()),
				err,
			}
			switch {
			case status >= 500:
				logger.Error(args...)
			case status >= 400:
				logger.Warn(args...)
			default:
				logger.Info(args...)
			}
		}()
		if resp != nil {
			return c.JSON(status, resp)
		}
		return err
	}
}
