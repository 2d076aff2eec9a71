// Package api implements the versioned JSON endpoints of the agent. The web
// engine treats both dispatchers as opaque URL handlers.
package api

import (
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/vigil-web/vigil/http/mime"
	"github.com/vigil-web/vigil/http/status"
	"github.com/vigil-web/vigil/internal/webclient"
	"github.com/vigil-web/vigil/registry"
)

// Service answers the /api/v1 and /api/v2 trees.
type Service struct {
	registry *registry.Registry
	version  string
	started  time.Time
}

func New(reg *registry.Registry, version string) *Service {
	return &Service{
		registry: reg,
		version:  version,
		started:  time.Now(),
	}
}

type infoV1 struct {
	Version  string `json:"version"`
	UID      string `json:"uid"`
	Hostname string `json:"hostname"`
	Uptime   int64  `json:"uptime"`
}

type nodeV2 struct {
	Hostname string `json:"hostname"`
	GUID     string `json:"guid"`
	NodeID   string `json:"node_id,omitempty"`
}

type infoV2 struct {
	Agent struct {
		Version  string `json:"version"`
		UID      string `json:"uid"`
		Hostname string `json:"hostname"`
		Uptime   int64  `json:"uptime"`
	} `json:"agent"`
	Nodes []nodeV2 `json:"nodes"`
}

// V1 dispatches an /api/v1/... path fragment for the selected host.
func (s *Service) V1(host *registry.Host, c *webclient.Client, path string) status.Code {
	endpoint, _ := cut(path)

	switch endpoint {
	case "info":
		out := infoV1{
			Version:  s.version,
			UID:      host.GUID,
			Hostname: host.Hostname,
			Uptime:   int64(time.Since(s.started).Seconds()),
		}

		return s.respondJSON(c, out)
	}

	return s.unknownEndpoint(c)
}

// V2 dispatches an /api/v2/... path fragment for the selected host.
func (s *Service) V2(host *registry.Host, c *webclient.Client, path string) status.Code {
	endpoint, _ := cut(path)

	switch endpoint {
	case "info":
		var out infoV2
		out.Agent.Version = s.version
		out.Agent.UID = host.GUID
		out.Agent.Hostname = host.Hostname
		out.Agent.Uptime = int64(time.Since(s.started).Seconds())
		out.Nodes = []nodeV2{}

		return s.respondJSON(c, out)

	case "nodes":
		nodes := []nodeV2{{
			Hostname: host.Hostname,
			GUID:     host.GUID,
			NodeID:   host.NodeID,
		}}

		return s.respondJSON(c, nodes)
	}

	return s.unknownEndpoint(c)
}

func (s *Service) respondJSON(c *webclient.Client, model any) status.Code {
	body := c.Response()
	body.Reset()
	body.ContentType = mime.JSON
	body.NoCacheable()

	stream := json.ConfigDefault.BorrowStream(body)
	stream.WriteVal(model)
	err := stream.Flush()
	json.ConfigDefault.ReturnStream(stream)

	if err != nil {
		body.Reset()
		body.ContentType = mime.Plain
		body.AppendString("Internal server error")
		return status.InternalServerError
	}

	return status.OK
}

func (s *Service) unknownEndpoint(c *webclient.Client) status.Code {
	body := c.Response()
	body.Reset()
	body.ContentType = mime.HTML
	body.AppendString("Unknown API endpoint.")
	return status.NotFound
}

func cut(path string) (endpoint, rest string) {
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}

	if at := strings.IndexAny(path, "/?"); at != -1 {
		return path[:at], path[at+1:]
	}

	return path, ""
}
