// Package docker runs toolchain commands inside a container image, for
// vendor tools shipped as images.
package docker

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/ReconfigureIO/hlsflow/toolchain"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	log "github.com/sirupsen/logrus"
)

// Client is the part of the docker API the runner uses.
type Client interface {
	ContainerCreate(
		ctx context.Context,
		config *container.Config,
		hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig,
		containerName string,
	) (
		container.ContainerCreateCreatedBody,
		error,
	)

	ContainerStart(
		ctx context.Context,
		containerID string,
		options types.ContainerStartOptions,
	) error

	ContainerWait(
		ctx context.Context,
		containerID string,
		condition container.WaitCondition,
	) (
		<-chan container.ContainerWaitOKBody,
		<-chan error,
	)

	ContainerLogs(
		ctx context.Context,
		container string,
		options types.ContainerLogsOptions,
	) (
		io.ReadCloser,
		error,
	)

	ContainerRemove(
		ctx context.Context,
		containerID string,
		options types.ContainerRemoveOptions,
	) error
}

// Runner runs each command in a fresh container of Image. The command's
// working directory is bind mounted at the same path.
type Runner struct {
	Client Client
	Image  string
	// Binds are extra host:container mounts, e.g. the vendor install.
	Binds []string
}

// NewEnvRunner connects to the docker daemon configured in the environment.
func NewEnvRunner(image string, binds ...string) (*Runner, error) {
	c, err := client.NewEnvClient()
	if err != nil {
		return nil, err
	}
	return &Runner{Client: c, Image: image, Binds: binds}, nil
}

func (r *Runner) Run(ctx context.Context, c toolchain.Command) (*toolchain.Result, error) {
	binds := append([]string(nil), r.Binds...)
	if c.Dir != "" {
		binds = append(binds, c.Dir+":"+c.Dir)
	}
	created, err := r.Client.ContainerCreate(
		ctx,
		&container.Config{
			Image:      r.Image,
			Cmd:        append([]string{c.Name}, c.Args...),
			Env:        c.Env,
			WorkingDir: c.Dir,
		},
		&container.HostConfig{Binds: binds},
		nil,
		"",
	)
	if err != nil {
		return nil, err
	}
	l := log.WithFields(log.Fields{"container": created.ID, "image": r.Image, "command": c.Name})
	defer func() {
		err := r.Client.ContainerRemove(context.Background(), created.ID, types.ContainerRemoveOptions{Force: true})
		if err != nil {
			l.WithError(err).Warn("failed to remove container")
		}
	}()

	start := time.Now()
	if err := r.Client.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return nil, err
	}
	l.Debug("container started")

	res := &toolchain.Result{}
	exited, errored := r.Client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case body := <-exited:
		res.ExitCode = int(body.StatusCode)
	case err := <-errored:
		return nil, err
	}
	res.Duration = time.Since(start)

	logs, err := r.Client.ContainerLogs(ctx, created.ID, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return res, err
	}
	defer logs.Close()
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return res, err
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	l.WithField("exit_code", res.ExitCode).Debug("container finished")
	return res, nil
}
