package inlet

import (
	"fmt"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/config"
	"github.com/tne-lab/LSL-inlet/errors"
	"github.com/tne-lab/LSL-inlet/input/natsstream"
	"github.com/tne-lab/LSL-inlet/input/synthetic"
)

// buildSources creates the sources for the configured source kind
func (in *Inlet) buildSources(info acquisition.StreamInfo) (acquisition.ChunkSource, acquisition.MarkerSource, error) {
	switch in.cfg.Source {
	case config.SourceSynthetic:
		return in.syntheticSources(info)
	case config.SourceNATS:
		return in.natsSources(info)
	default:
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: source %q", errors.ErrInvalidConfig, in.cfg.Source),
			"Inlet", "buildSources", "source kind")
	}
}

func (in *Inlet) syntheticSources(info acquisition.StreamInfo) (acquisition.ChunkSource, acquisition.MarkerSource, error) {
	sc := in.cfg.Synthetic
	var opts []synthetic.Option
	if sc.Amplitude > 0 {
		opts = append(opts, synthetic.WithAmplitude(sc.Amplitude))
	}
	if sc.FrequencyHz > 0 {
		opts = append(opts, synthetic.WithFrequency(sc.FrequencyHz))
	}

	chunks, err := synthetic.NewChunkSource(info, opts...)
	if err != nil {
		return nil, nil, err
	}
	if !in.cfg.Markers.Enabled {
		return chunks, nil, nil
	}
	return chunks, synthetic.NewMarkerSource(chunks, sc.MarkerEvery.Std(), sc.MarkerLabels...), nil
}

func (in *Inlet) natsSources(info acquisition.StreamInfo) (acquisition.ChunkSource, acquisition.MarkerSource, error) {
	deps := natsstream.Deps{Client: in.client, Logger: in.logger}

	chunks, err := natsstream.NewChunkSource(info, natsstream.Config{
		Subject:   in.cfg.NATS.ChunkSubject,
		InboxSize: in.cfg.NATS.InboxSize,
	}, deps)
	if err != nil {
		return nil, nil, err
	}
	if !in.cfg.Markers.Enabled {
		return chunks, nil, nil
	}

	markers, err := natsstream.NewMarkerSource(in.cfg.Markers.Name, natsstream.Config{
		Subject:   in.cfg.NATS.MarkerSubject,
		InboxSize: in.cfg.NATS.InboxSize,
	}, deps)
	if err != nil {
		return nil, nil, err
	}
	return chunks, markers, nil
}
