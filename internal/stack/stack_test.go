package stack

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	imageapi "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/searchbox/searchbox/internal/config"
)

type fakeDocker struct {
	containers []types.Container

	pulled  []string
	created []string
	started []string
	stopped []string
	removed []string

	listErr  error
	startErr error
}

func (f *fakeDocker) ImagePull(ctx context.Context, ref string, _ imageapi.PullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, ref)
	return io.NopCloser(strings.NewReader("{}")), nil
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, cfg *containertypes.Config, hostCfg *containertypes.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (containertypes.CreateResponse, error) {
	f.created = append(f.created, name)
	for _, env := range []string{"discovery.type=single-node", "xpack.security.enabled=false"} {
		found := false
		for _, e := range cfg.Env {
			if e == env {
				found = true
			}
		}
		if !found {
			return containertypes.CreateResponse{}, fmt.Errorf("missing env %s", env)
		}
	}
	return containertypes.CreateResponse{ID: "new-id"}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, id string, _ containertypes.StartOptions) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeDocker) ContainerStop(ctx context.Context, id string, _ containertypes.StopOptions) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, id string, _ containertypes.RemoveOptions) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDocker) ContainerList(ctx context.Context, _ containertypes.ListOptions) ([]types.Container, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.containers, nil
}

// newClusterEndpoint serves a stand-in for the cluster root endpoint and
// returns a config pointing at it with a fast wait cadence.
func newClusterEndpoint(t *testing.T) *config.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.ESURL = srv.URL
	cfg.WaitAttempts = 2
	cfg.WaitInterval = 10 * time.Millisecond
	cfg.WaitTimeout = time.Second
	return cfg
}

func TestUpCreatesContainer(t *testing.T) {
	cfg := newClusterEndpoint(t)
	fd := &fakeDocker{}
	s := NewWithAPI(cfg, fd)

	if err := s.Up(context.Background()); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if len(fd.pulled) != 1 || fd.pulled[0] != cfg.StackImage {
		t.Fatalf("expected image pull of %s, got %v", cfg.StackImage, fd.pulled)
	}
	if len(fd.created) != 1 || fd.created[0] != cfg.StackName {
		t.Fatalf("expected container create %s, got %v", cfg.StackName, fd.created)
	}
	if len(fd.started) != 1 || fd.started[0] != "new-id" {
		t.Fatalf("expected new container started, got %v", fd.started)
	}
}

func TestUpReusesRunningContainer(t *testing.T) {
	cfg := newClusterEndpoint(t)
	fd := &fakeDocker{containers: []types.Container{
		{ID: "old-id", Names: []string{"/" + cfg.StackName}, State: "running"},
	}}
	s := NewWithAPI(cfg, fd)

	if err := s.Up(context.Background()); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if len(fd.pulled) != 0 || len(fd.created) != 0 || len(fd.started) != 0 {
		t.Fatalf("expected no pull/create/start for a running container, got %v/%v/%v",
			fd.pulled, fd.created, fd.started)
	}
}

func TestUpRestartsStoppedContainer(t *testing.T) {
	cfg := newClusterEndpoint(t)
	fd := &fakeDocker{containers: []types.Container{
		{ID: "old-id", Names: []string{"/" + cfg.StackName}, State: "exited"},
	}}
	s := NewWithAPI(cfg, fd)

	if err := s.Up(context.Background()); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if len(fd.created) != 0 {
		t.Fatalf("expected no create for an existing container, got %v", fd.created)
	}
	if len(fd.started) != 1 || fd.started[0] != "old-id" {
		t.Fatalf("expected existing container restarted, got %v", fd.started)
	}
}

func TestUpFailsWhenClusterNeverAnswers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ESURL = "http://127.0.0.1:1" // nothing listens here
	cfg.WaitAttempts = 2
	cfg.WaitInterval = 10 * time.Millisecond
	cfg.WaitTimeout = 200 * time.Millisecond

	fd := &fakeDocker{containers: []types.Container{
		{ID: "old-id", Names: []string{"/" + cfg.StackName}, State: "running"},
	}}
	s := NewWithAPI(cfg, fd)

	if err := s.Up(context.Background()); err == nil {
		t.Fatal("expected Up to fail when the cluster never answers")
	}
}

func TestDownStopsAndRemoves(t *testing.T) {
	cfg := config.DefaultConfig()
	fd := &fakeDocker{containers: []types.Container{
		{ID: "old-id", Names: []string{"/" + cfg.StackName}, State: "running"},
	}}
	s := NewWithAPI(cfg, fd)

	if err := s.Down(context.Background()); err != nil {
		t.Fatalf("Down failed: %v", err)
	}
	if len(fd.stopped) != 1 || fd.stopped[0] != "old-id" {
		t.Fatalf("expected container stopped, got %v", fd.stopped)
	}
	if len(fd.removed) != 1 || fd.removed[0] != "old-id" {
		t.Fatalf("expected container removed, got %v", fd.removed)
	}
}

func TestDownMissingContainerIsNoop(t *testing.T) {
	cfg := config.DefaultConfig()
	fd := &fakeDocker{}
	s := NewWithAPI(cfg, fd)

	if err := s.Down(context.Background()); err != nil {
		t.Fatalf("Down failed: %v", err)
	}
	if len(fd.stopped) != 0 || len(fd.removed) != 0 {
		t.Fatalf("expected no stop/remove, got %v/%v", fd.stopped, fd.removed)
	}
}

func TestHostPortFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://localhost:9200", "9200"},
		{"http://elasticsearch:9201", "9201"},
		{"http://localhost", "9200"},
	}
	for _, tt := range tests {
		got, err := hostPortFromURL(tt.url)
		if err != nil {
			t.Fatalf("hostPortFromURL(%q) failed: %v", tt.url, err)
		}
		if got != tt.want {
			t.Fatalf("hostPortFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
