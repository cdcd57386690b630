package docker

import (
	"context"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ReconfigureIO/hlsflow/toolchain"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/fortytw2/leaktest"
)

type fakeDockerClient struct {
	mu         sync.Mutex
	config     *container.Config
	hostConfig *container.HostConfig
	status     int64
	stdout     string
	stderr     string
	removed    bool
}

func (c *fakeDockerClient) ContainerCreate(
	ctx context.Context,
	config *container.Config,
	hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig,
	containerName string,
) (
	container.ContainerCreateCreatedBody,
	error,
) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = config
	c.hostConfig = hostConfig
	return container.ContainerCreateCreatedBody{ID: "1"}, nil
}

func (c *fakeDockerClient) ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error {
	return nil
}

func (c *fakeDockerClient) ContainerWait(
	ctx context.Context,
	containerID string,
	condition container.WaitCondition,
) (
	<-chan container.ContainerWaitOKBody,
	<-chan error,
) {
	exited := make(chan container.ContainerWaitOKBody, 1)
	errs := make(chan error)
	go func() {
		time.Sleep(1 * time.Millisecond)
		exited <- container.ContainerWaitOKBody{StatusCode: c.status}
	}()
	return exited, errs
}

func (c *fakeDockerClient) ContainerLogs(
	ctx context.Context,
	container string,
	options types.ContainerLogsOptions,
) (
	io.ReadCloser,
	error,
) {
	piper, pipew := io.Pipe()
	go func() {
		defer pipew.Close()
		stdcopy.NewStdWriter(pipew, stdcopy.Stdout).Write([]byte(c.stdout))
		stdcopy.NewStdWriter(pipew, stdcopy.Stderr).Write([]byte(c.stderr))
	}()
	return piper, nil
}

func (c *fakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = true
	return nil
}

func TestRunner(t *testing.T) {
	defer leaktest.Check(t)()

	client := &fakeDockerClient{status: 2, stdout: "INFO: starting\n", stderr: "ERROR: no license\n"}
	r := &Runner{Client: client, Image: "vivado:2019.2", Binds: []string{"/opt/Xilinx:/opt/Xilinx"}}

	res, err := r.Run(context.Background(), toolchain.Command{
		Name: "vivado_hls",
		Args: []string{"-f", "build_prj.tcl"},
		Dir:  "/work/prj",
		Env:  []string{"XILINX_VIVADO=/opt/Xilinx"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 2 || res.Stdout != "INFO: starting\n" || res.Stderr != "ERROR: no license\n" {
		t.Errorf("unexpected result %+v", res)
	}

	expectedCmd := []string{"vivado_hls", "-f", "build_prj.tcl"}
	if !reflect.DeepEqual([]string(client.config.Cmd), expectedCmd) {
		t.Errorf("expected cmd %v, got %v", expectedCmd, client.config.Cmd)
	}
	if client.config.WorkingDir != "/work/prj" {
		t.Errorf("expected working dir /work/prj, got %s", client.config.WorkingDir)
	}
	expectedBinds := []string{"/opt/Xilinx:/opt/Xilinx", "/work/prj:/work/prj"}
	if !reflect.DeepEqual(client.hostConfig.Binds, expectedBinds) {
		t.Errorf("expected binds %v, got %v", expectedBinds, client.hostConfig.Binds)
	}
	if !client.removed {
		t.Error("container was not removed")
	}
}
