package main

import (
	"github.com/ReconfigureIO/hlsflow/config"
	"github.com/ReconfigureIO/hlsflow/service/storage"
	"github.com/ReconfigureIO/hlsflow/service/storage/localfile"
	"github.com/ReconfigureIO/hlsflow/service/storage/s3"
	"github.com/ReconfigureIO/hlsflow/synth"
	"github.com/ReconfigureIO/hlsflow/toolchain"
	"github.com/ReconfigureIO/hlsflow/toolchain/docker"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// storageService returns the configured artifact storage, or nil.
func storageService(conf *config.Config) storage.Service {
	switch {
	case conf.Storage.Bucket != "":
		return s3.New(conf.Storage.Bucket, conf.Storage.Region)
	case conf.Storage.Dir != "":
		return localfile.Service(conf.Storage.Dir)
	}
	return nil
}

// backendRunner runs the HLS backend on the host, or in the configured
// docker image.
func backendRunner(conf *config.Config) (toolchain.Runner, error) {
	if conf.Toolchain.DockerImage == "" {
		return toolchain.ExecRunner{}, nil
	}
	log.WithField("image", conf.Toolchain.DockerImage).Info("running the backend in docker")
	return docker.NewEnvRunner(conf.Toolchain.DockerImage, conf.Toolchain.DockerBinds...)
}

func synthesizer(conf *config.Config) (*synth.Synthesizer, error) {
	runner, err := backendRunner(conf)
	if err != nil {
		return nil, err
	}
	return &synth.Synthesizer{
		Runner: runner,
		Tool:   conf.Toolchain.Vivado,
		Watch:  true,
	}, nil
}

// synthFlags binds the backend step flags.
type synthFlags struct {
	flags synth.Flags
}

func (s *synthFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	d := synth.DefaultFlags
	fs.BoolVar(&s.flags.Reset, "reset", d.Reset, "reset the HLS project")
	fs.BoolVar(&s.flags.CSim, "csim", d.CSim, "run C simulation")
	fs.BoolVar(&s.flags.Synth, "synth", d.Synth, "run C synthesis")
	fs.BoolVar(&s.flags.CoSim, "cosim", d.CoSim, "run C/RTL co-simulation")
	fs.BoolVar(&s.flags.Validation, "validation", d.Validation, "validate co-simulation results")
	fs.BoolVar(&s.flags.Export, "export", d.Export, "export the IP")
	fs.BoolVar(&s.flags.VSynth, "vsynth", d.VSynth, "run logic synthesis for the utilisation report")
}
