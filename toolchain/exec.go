package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// ExecRunner runs commands as local processes. Output lines are logged at
// debug level as they arrive.
type ExecRunner struct {
	// Log defaults to the standard logger.
	Log *log.Entry
}

func (r ExecRunner) logger() *log.Entry {
	if r.Log != nil {
		return r.Log
	}
	return log.NewEntry(log.StandardLogger())
}

func (r ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	l := r.logger().WithField("command", c.Name)
	var stdout, stderr bytes.Buffer
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	var wg sync.WaitGroup
	wg.Add(2)
	go stream(&wg, outR, &stdout, l.WithField("stream", "stdout"))
	go stream(&wg, errR, &stderr, l.WithField("stream", "stderr"))

	start := time.Now()
	err := cmd.Start()
	if err == nil {
		err = cmd.Wait()
	}
	outW.Close()
	errW.Close()
	wg.Wait()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if exitErr, ok := err.(*exec.ExitError); ok && ctx.Err() == nil {
		res.ExitCode = exitCode(exitErr)
		err = nil
	}
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return res, err
	}
	l.WithField("duration", res.Duration).WithField("exit_code", res.ExitCode).Debug("command finished")
	return res, nil
}

func exitCode(err *exec.ExitError) int {
	if status, ok := err.Sys().(syscall.WaitStatus); ok {
		return status.ExitStatus()
	}
	return 1
}

func stream(wg *sync.WaitGroup, r io.Reader, buf *bytes.Buffer, l *log.Entry) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		buf.Write(scanner.Bytes())
		buf.WriteByte('\n')
		l.Debug(scanner.Text())
	}
	// Drain so the process never blocks on a full pipe.
	io.Copy(buf, r)
}
