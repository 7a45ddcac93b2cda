package main

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ethpir/lifecycle"
	"ethpir/pirerr"
	"ethpir/protocol"
	"ethpir/router"
	"ethpir/snapshot"
)

// queryBody is the JSON request body for the non-binary query endpoints:
// {"query": {...protocol.QueryEnvelope...}}. The lane and the
// seeded/non-seeded distinction come from the URL, not the body.
type queryBody struct {
	Query protocol.QueryEnvelope `json:"query"`
}

func registerRoutes(r *gin.Engine, rtr *router.Router, swap *snapshot.Swap, debouncer *snapshot.Debouncer, log *logrus.Entry) {
	r.GET("/health", healthHandler(swap))
	r.GET("/metrics", metricsHandler(swap))
	r.GET("/crs/:lane", crsHandler(rtr))
	r.POST("/query/:lane", queryHandler(rtr, log, false))
	r.POST("/query/:lane/seeded", queryHandler(rtr, log, true))
	r.POST("/query/:lane/binary", queryBinaryHandler(rtr, log, false))
	r.POST("/query/:lane/seeded/binary", queryBinaryHandler(rtr, log, true))
	r.POST("/admin/reload", reloadHandler(debouncer))
}

func queryHandler(rtr *router.Router, log *logrus.Entry, seeded bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.New().String()
		var body queryBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body", "code": "DecodeError"})
			return
		}
		resp, err := lifecycle.Handle(rtr, lifecycle.Request{Lane: c.Param("lane"), Seeded: seeded, Query: body.Query})
		if err != nil {
			writeQueryError(c, log, reqID, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"response": resp, "lane": c.Param("lane")})
	}
}

func queryBinaryHandler(rtr *router.Router, log *logrus.Entry, seeded bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.New().String()
		var body queryBody
		if err := gob.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			c.Data(http.StatusBadRequest, "application/octet-stream", nil)
			return
		}
		resp, err := lifecycle.Handle(rtr, lifecycle.Request{Lane: c.Param("lane"), Seeded: seeded, Query: body.Query})
		if err != nil {
			log.WithFields(logrus.Fields{"request_id": reqID, "lane": c.Param("lane")}).WithError(err).Warn("binary query failed")
			c.Data(statusForErr(err), "application/octet-stream", nil)
			return
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(resp); err != nil {
			c.Data(http.StatusInternalServerError, "application/octet-stream", nil)
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
	}
}

func crsHandler(rtr *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, lane, err := rtr.Route(c.Param("lane"))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "LaneNotLoaded", "code": "LaneNotLoaded"})
			return
		}
		defer ref.Release()
		c.JSON(http.StatusOK, gin.H{
			"crs":         lane.Crs,
			"lane":        lane.Name,
			"entry_count": lane.EntryCount,
			"shard_config": gin.H{
				"entry_width":  lane.EntryWidth,
				"record_width": lane.RecordWidth,
			},
		})
	}
}

func reloadHandler(debouncer *snapshot.Debouncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		debouncer.Trigger()
		c.JSON(http.StatusAccepted, gin.H{"status": "reload scheduled"})
	}
}

func healthHandler(swap *snapshot.Swap) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := swap.Current()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		lanes := make([]string, 0, len(snap.Lanes))
		for name := range snap.Lanes {
			lanes = append(lanes, name)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "lanes": lanes, "global_block_number": snap.GlobalBlockNumber})
	}
}

func metricsHandler(swap *snapshot.Swap) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := swap.Current()
		if err != nil {
			c.String(http.StatusServiceUnavailable, "")
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "pirserver_global_block_number %d\n", snap.GlobalBlockNumber)
		for name, lane := range snap.Lanes {
			fmt.Fprintf(&b, "pirserver_lane_entry_count{lane=%q} %d\n", name, lane.EntryCount)
		}
		c.String(http.StatusOK, b.String())
	}
}

// writeQueryError translates an error returned by lifecycle.Handle into the
// {error, code} body the external interface requires, logging the full
// error (which never carries ciphertext or key material, only shapes and
// counts) under the request id for correlation, and never putting the
// full error text in the response body.
func writeQueryError(c *gin.Context, log *logrus.Entry, reqID string, err error) {
	status, code := statusAndCodeFor(err)
	log.WithFields(logrus.Fields{"request_id": reqID, "lane": c.Param("lane"), "code": code}).WithError(err).Warn("query failed")
	c.JSON(status, gin.H{"error": code, "code": code})
}

func statusForErr(err error) int {
	status, _ := statusAndCodeFor(err)
	return status
}

func statusAndCodeFor(err error) (int, string) {
	switch {
	case errors.Is(err, pirerr.VersionMismatch):
		return http.StatusConflict, "VersionMismatch"
	case errors.Is(err, pirerr.LaneNotLoaded):
		return http.StatusServiceUnavailable, "LaneNotLoaded"
	case errors.Is(err, pirerr.MalformedQuery):
		return http.StatusBadRequest, "MalformedQuery"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}
