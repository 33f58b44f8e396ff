// Package http exposes a small debug and introspection API over gin.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/call"
	"github.com/dkeye/Duplex/internal/config"
	"github.com/dkeye/Duplex/internal/devices"
	"github.com/dkeye/Duplex/internal/domain"
)

// State bundles everything the debug API reads.
type State struct {
	Catalog   *devices.Catalog
	Resolvers map[domain.DeviceType]*devices.Resolver
	Calls     func() []*call.Context
}

func SetupRouter(cfg *config.Config, state *State) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":   call.Version(),
			"max_layer": call.MaxLayer(),
		})
	})

	api.GET("/devices", func(c *gin.Context) {
		out := gin.H{}
		for _, t := range []domain.DeviceType{
			domain.DeviceTypePlayback,
			domain.DeviceTypeCapture,
			domain.DeviceTypeCamera,
		} {
			entry := gin.H{
				"default_id":  state.Catalog.DefaultID(t),
				"devices":     state.Catalog.Devices(t),
				"sync_errors": state.Catalog.SyncErrors(t),
			}
			if res, ok := state.Resolvers[t]; ok {
				entry["resolved"] = res.Current()
			}
			out[t.String()] = entry
		}
		c.JSON(http.StatusOK, out)
	})

	api.GET("/calls", func(c *gin.Context) {
		var out []gin.H
		if state.Calls != nil {
			for _, ctx := range state.Calls() {
				out = append(out, gin.H{
					"state": ctx.State().Get().String(),
					"debug": ctx.DebugInfo(),
				})
			}
		}
		c.JSON(http.StatusOK, gin.H{"calls": out})
	})

	return r
}
