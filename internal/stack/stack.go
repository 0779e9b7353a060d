// Package stack brings up and tears down the development Elasticsearch
// container through the Docker SDK, replacing a hand-maintained compose file
// for local work.
package stack

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	imageapi "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/searchbox/searchbox/internal/config"
	"github.com/searchbox/searchbox/internal/elastic"
	"github.com/searchbox/searchbox/internal/logging"
)

const (
	clusterPort = "9200/tcp"
	stopTimeout = 30 // seconds
)

// dockerAPI is the slice of the Docker SDK the stack needs.
type dockerAPI interface {
	ImagePull(ctx context.Context, refStr string, options imageapi.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *containertypes.Config, hostConfig *containertypes.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (containertypes.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options containertypes.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options containertypes.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options containertypes.RemoveOptions) error
	ContainerList(ctx context.Context, options containertypes.ListOptions) ([]types.Container, error)
}

// Stack manages the lifecycle of the single-node cluster container.
type Stack struct {
	cli dockerAPI
	cfg *config.Config
}

// New connects to the local Docker daemon using environment configuration.
func New(cfg *config.Config) (*Stack, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Stack{cli: c, cfg: cfg}, nil
}

// NewWithAPI wires an explicit Docker API, used by tests.
func NewWithAPI(cfg *config.Config, api dockerAPI) *Stack {
	return &Stack{cli: api, cfg: cfg}
}

// Up ensures the cluster container exists and is running, then blocks until
// the cluster answers HTTP on the configured URL. A container left over from
// a previous run is reused rather than recreated.
func (s *Stack) Up(ctx context.Context) error {
	existing, err := s.find(ctx)
	if err != nil {
		return err
	}

	switch {
	case existing != nil && existing.State == "running":
		logging.Get().Info().Str("name", s.cfg.StackName).Str("id", existing.ID).Msg("cluster container already running")
	case existing != nil:
		logging.Get().Info().Str("name", s.cfg.StackName).Str("id", existing.ID).Msg("starting existing cluster container")
		if err := s.cli.ContainerStart(ctx, existing.ID, containertypes.StartOptions{}); err != nil {
			return fmt.Errorf("start container %s: %w", existing.ID, err)
		}
	default:
		if err := s.create(ctx); err != nil {
			return err
		}
	}

	return s.waitReady(ctx)
}

// Down stops and removes the cluster container. Missing containers are not
// an error so the command stays idempotent.
func (s *Stack) Down(ctx context.Context) error {
	existing, err := s.find(ctx)
	if err != nil {
		return err
	}
	if existing == nil {
		logging.Get().Info().Str("name", s.cfg.StackName).Msg("cluster container not found, nothing to do")
		return nil
	}

	timeout := stopTimeout
	if err := s.cli.ContainerStop(ctx, existing.ID, containertypes.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("stop container %s: %w", existing.ID, err)
	}
	if err := s.cli.ContainerRemove(ctx, existing.ID, containertypes.RemoveOptions{}); err != nil {
		return fmt.Errorf("remove container %s: %w", existing.ID, err)
	}
	logging.Get().Info().Str("name", s.cfg.StackName).Str("id", existing.ID).Msg("cluster container removed")
	return nil
}

// find returns the managed container if one exists in any state.
func (s *Stack) find(ctx context.Context) (*types.Container, error) {
	list, err := s.cli.ContainerList(ctx, containertypes.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	want := "/" + s.cfg.StackName
	for i := range list {
		for _, name := range list[i].Names {
			if name == want {
				return &list[i], nil
			}
		}
	}
	return nil, nil
}

func (s *Stack) create(ctx context.Context) error {
	logging.Get().Info().Str("image", s.cfg.StackImage).Msg("pulling cluster image")
	rc, err := s.cli.ImagePull(ctx, s.cfg.StackImage, imageapi.PullOptions{})
	if err != nil {
		return fmt.Errorf("image pull %s: %w", s.cfg.StackImage, err)
	}
	// consume stream to completion
	_, _ = io.Copy(io.Discard, rc)
	rc.Close()

	hostPort, err := hostPortFromURL(s.cfg.ESURL)
	if err != nil {
		return err
	}

	cfg := &containertypes.Config{
		Image: s.cfg.StackImage,
		Env: []string{
			"discovery.type=single-node",
			"xpack.security.enabled=false",
			"ES_JAVA_OPTS=-Xms512m -Xmx512m",
		},
		ExposedPorts: nat.PortSet{nat.Port(clusterPort): struct{}{}},
	}
	hostCfg := &containertypes.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(clusterPort): []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}},
		},
	}
	resp, err := s.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, s.cfg.StackName)
	if err != nil {
		return fmt.Errorf("create container %s: %w", s.cfg.StackName, err)
	}
	if err := s.cli.ContainerStart(ctx, resp.ID, containertypes.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", resp.ID, err)
	}
	logging.Get().Info().Str("name", s.cfg.StackName).Str("id", resp.ID).Msg("cluster container started")
	return nil
}

// waitReady polls the cluster root endpoint with the same cadence the service
// uses at startup.
func (s *Stack) waitReady(ctx context.Context) error {
	opts := elastic.WaitOptions{
		Attempts: s.cfg.WaitAttempts,
		Interval: s.cfg.WaitInterval,
		Timeout:  s.cfg.WaitTimeout,
	}
	return elastic.Wait(ctx, &httpPinger{url: s.cfg.ESURL}, opts)
}

// httpPinger answers Ping with a plain GET against the cluster root. It does
// not go through the search client because the cluster may still be booting
// and a transport-level probe is enough here.
type httpPinger struct {
	url    string
	client *http.Client
}

func (p *httpPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	c := p.client
	if c == nil {
		c = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("cluster answered status %d", resp.StatusCode)
	}
	return nil
}

// hostPortFromURL extracts the host port to publish from the cluster URL.
func hostPortFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse cluster url %q: %w", raw, err)
	}
	if p := u.Port(); p != "" {
		return p, nil
	}
	return "9200", nil
}
