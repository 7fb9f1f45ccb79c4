package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beatsense/internal/analysis"
	"beatsense/internal/audio"
	"beatsense/internal/config"
	"beatsense/internal/haptic"
	"beatsense/internal/haptic/driver"
	"beatsense/internal/log"
	"beatsense/internal/pipeline"
	"beatsense/internal/source"
	"beatsense/internal/transport"
	"beatsense/internal/transport/mqtt"
	"beatsense/internal/transport/udp"
	"beatsense/internal/tui"
)

// runtime is everything downstream of the sample source.
type runtime struct {
	driver   haptic.Driver
	pipeline *pipeline.Pipeline
	feed     *tui.Feed // Nil without the terminal UI.
	sender   *udp.UDPSender
}

// openDriver builds the configured haptic driver.
func openDriver(cfg *config.Config) (haptic.Driver, error) {
	kind, err := driver.ParseKind(cfg.Haptic.Driver)
	if err != nil {
		return nil, err
	}
	class, err := haptic.ParseDeviceClass(cfg.Haptic.DeviceClass)
	if err != nil {
		return nil, err
	}
	return driver.Open(driver.Options{
		Kind:      kind,
		Class:     class,
		Chip:      cfg.Haptic.GPIO.Chip,
		Line:      cfg.Haptic.GPIO.Line,
		ActiveLow: cfg.Haptic.GPIO.ActiveLow,
	})
}

// newRuntime wires driver, gateway, analyser, transports and pipeline. The
// analyser runs at sampleRate, which for a replay is the file's rate.
func newRuntime(cfg *config.Config, sampleRate float64, withFeed bool) (*runtime, error) {
	rt := &runtime{}

	d, err := openDriver(cfg)
	if err != nil {
		log.Warnf("Haptic: %v, continuing without a motor", err)
		d = driver.Unsupported{}
	}
	rt.driver = d

	gw, err := haptic.NewGateway(d, cfg.GatewayOptions())
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("haptic gateway: %w", err)
	}

	fftCfg := cfg.FFTConfig()
	fftCfg.SampleRate = sampleRate
	analyser, err := analysis.NewFFTProcessor(fftCfg)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("analyser: %w", err)
	}

	out, err := rt.buildTransports(cfg.Transport)
	if err != nil {
		rt.close()
		return nil, err
	}

	opts := pipeline.DefaultOptions()
	opts.Mode = pipeline.Mode(cfg.Haptic.Mode)
	opts.Strategy = pipeline.Strategy(cfg.Haptic.Strategy)
	opts.Beat = cfg.Beat
	opts.Transport = out
	if withFeed {
		rt.feed = tui.NewFeed(64)
		opts.OnMessage = rt.feed.Publish
	}

	p, err := pipeline.New(gw, analyser, opts)
	if err != nil {
		out.Close()
		rt.close()
		return nil, err
	}
	rt.pipeline = p
	return rt, nil
}

// buildTransports starts every enabled transport. A transport that fails to
// start is logged and skipped so the others keep running.
func (rt *runtime) buildTransports(tc config.TransportConfig) (*transport.Multi, error) {
	out := transport.NewMulti()

	if tc.LogEnabled {
		out.Add(transport.NewLoggingTransport())
	}

	if tc.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddr)
		if err != nil {
			log.Errorf("Transport: websocket on %s: %v", tc.WebSocketAddr, err)
		} else {
			out.Add(ws)
		}
	}

	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			log.Errorf("Transport: udp sender for %s: %v", tc.UDPTargetAddress, err)
		} else {
			pub, err := udp.NewUDPPublisher(tc.UDPSendInterval, sender)
			if err != nil {
				sender.Close()
				out.Close()
				return nil, fmt.Errorf("udp publisher: %w", err)
			}
			pub.Start()
			rt.sender = sender
			out.Add(pub)
		}
	}

	if tc.MQTTEnabled {
		m, err := mqtt.New(mqtt.Config{
			Broker:   tc.MQTTBroker,
			ClientID: tc.MQTTClientID,
			Topic:    tc.MQTTTopic,
		})
		if err != nil {
			log.Errorf("Transport: mqtt %s: %v", tc.MQTTBroker, err)
		} else {
			out.Add(m)
		}
	}

	log.Infof("Transport: %d transport(s) active", out.Len())
	return out, nil
}

// Close shuts the pipeline and its transports down and releases the driver.
func (rt *runtime) Close() error {
	var errs []error
	if rt.pipeline != nil {
		errs = append(errs, rt.pipeline.Close())
		stats := rt.pipeline.Stats()
		log.Infof("Pipeline: %d ticks, %d beats, %d haptic plays, %d send errors",
			stats.Ticks, stats.Beats, stats.HapticPlays, stats.SendErrors)
	}
	if rt.feed != nil {
		rt.feed.Close()
	}
	errs = append(errs, rt.close())
	return errors.Join(errs...)
}

func (rt *runtime) close() error {
	var errs []error
	if rt.sender != nil {
		errs = append(errs, rt.sender.Close())
	}
	if rt.driver != nil {
		errs = append(errs, driver.Close(rt.driver))
	}
	return errors.Join(errs...)
}

// runLive captures from the configured input device until ctx is done or the
// user quits the terminal UI.
func runLive(ctx context.Context, cfg *config.Config, opts *options) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	rt, err := newRuntime(cfg, cfg.Audio.SampleRate, opts.tui)
	if err != nil {
		return err
	}
	defer rt.Close()

	engine, err := audio.NewEngine(&cfg.Audio, rt.pipeline)
	if err != nil {
		return err
	}
	defer engine.Close()

	session := rt.pipeline.Attach("live:" + engine.Device().Name)
	log.Infof("Pipeline: Session %s on %s", session, engine.Device().Name)

	if err := engine.StartInputStream(); err != nil {
		return err
	}
	defer func() {
		stats := engine.Stats()
		log.Infof("Audio: %d buffers, %d gated, %d sink errors", stats.Buffers, stats.Gated, stats.SinkErrors)
	}()

	if cfg.Recording.Enabled {
		name := audio.RecordingName(cfg.Recording.OutputDir, time.Now())
		if err := engine.StartRecording(name); err != nil {
			return err
		}
		defer func() {
			if err := engine.StopRecording(); err != nil {
				log.Errorf("Audio: stop recording: %v", err)
			}
		}()
	}

	if opts.tui {
		return tui.RunMonitor(rt.feed, rt.pipeline)
	}
	<-ctx.Done()
	return nil
}

// runReplay feeds a decoded file through the pipeline. With the terminal UI
// the replay is paced and runs until the user quits.
func runReplay(ctx context.Context, cfg *config.Config, opts *options, path string) error {
	src, err := source.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	rt, err := newRuntime(cfg, src.SampleRate(), opts.tui)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.pipeline.Attach(src.Name())
	ropts := source.ReplayOptions{
		BlockSize: cfg.Audio.FramesPerBuffer,
		Start:     time.Now(),
		Realtime:  opts.realtime || opts.tui,
	}

	if !opts.tui {
		_, err := source.Replay(ctx, src, rt.pipeline, ropts)
		return ignoreCanceled(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := source.Replay(ctx, src, rt.pipeline, ropts)
		rt.feed.Close()
		done <- err
	}()

	if err := tui.RunMonitor(rt.feed, rt.pipeline); err != nil {
		return err
	}
	cancel()
	return ignoreCanceled(<-done)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
