/*
Copyright © 2022 - 2024 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package lkboot implements the command execution core of the loader: the
// command registry, the dispatcher and its built-in commands, the flash
// workflow and the boot pipeline.
package lkboot

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rancher/lkboot/pkg/chainload"
	"github.com/rancher/lkboot/pkg/constants"
	"github.com/rancher/lkboot/pkg/deferred"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/iobuf"
	"github.com/rancher/lkboot/pkg/platform"
	"github.com/rancher/lkboot/pkg/sysparam"
	"github.com/rancher/lkboot/pkg/types"
)

const tracerName = "github.com/rancher/lkboot/pkg/lkboot"

// Dispatcher serves one command at a time. Registered commands take
// precedence over the built-in ones.
//
// Once a boot or a reboot is scheduled the shared buffer belongs to the
// deferred action and every further command is rejected. The dispatcher
// accepts commands again only if the deferred action fails.
type Dispatcher struct {
	cfg       *types.Config
	logger    types.Logger
	registry  *Registry
	buf       *iobuf.Buffer
	table     types.PartitionTable
	sysparams types.SysparamStore
	platform  types.Platform
	invoker   chainload.Invoker
	scheduler deferred.Scheduler
	tracer    trace.Tracer

	flash    *FlashManager
	booter   *Booter
	mu       sync.Mutex
	terminal atomic.Bool
}

type DispatcherOptions func(d *Dispatcher) error

func WithRegistry(r *Registry) func(d *Dispatcher) error {
	return func(d *Dispatcher) error {
		d.registry = r
		return nil
	}
}

func WithBuffer(buf *iobuf.Buffer) func(d *Dispatcher) error {
	return func(d *Dispatcher) error {
		d.buf = buf
		return nil
	}
}

func WithPartitionTable(table types.PartitionTable) func(d *Dispatcher) error {
	return func(d *Dispatcher) error {
		d.table = table
		return nil
	}
}

func WithSysparams(store types.SysparamStore) func(d *Dispatcher) error {
	return func(d *Dispatcher) error {
		d.sysparams = store
		return nil
	}
}

func WithPlatform(p types.Platform) func(d *Dispatcher) error {
	return func(d *Dispatcher) error {
		d.platform = p
		return nil
	}
}

func WithInvoker(i chainload.Invoker) func(d *Dispatcher) error {
	return func(d *Dispatcher) error {
		d.invoker = i
		return nil
	}
}

func WithScheduler(s deferred.Scheduler) func(d *Dispatcher) error {
	return func(d *Dispatcher) error {
		d.scheduler = s
		return nil
	}
}

func WithTracer(t trace.Tracer) func(d *Dispatcher) error {
	return func(d *Dispatcher) error {
		d.tracer = t
		return nil
	}
}

// NewDispatcher returns a dispatcher for the given configuration. A
// partition table is required, any other collaborator not given as an
// option is created from the configuration.
func NewDispatcher(cfg *types.Config, opts ...DispatcherOptions) (*Dispatcher, error) {
	d := &Dispatcher{cfg: cfg, logger: cfg.Logger}
	for _, o := range opts {
		if err := o(d); err != nil {
			return nil, err
		}
	}
	if d.table == nil {
		return nil, errors.New("a partition table is required")
	}

	var err error
	if d.registry == nil {
		d.registry = NewRegistry()
	}
	if d.buf == nil {
		d.buf, err = iobuf.New(uint64(cfg.IOBuffer.Size), cfg.IOBuffer.Phys, uint64(cfg.IOBuffer.ArgsSize))
		if err != nil {
			return nil, err
		}
	}
	if d.sysparams == nil {
		d.sysparams, err = sysparam.NewStore(cfg)
		if err != nil {
			return nil, err
		}
	}
	if d.platform == nil {
		d.platform, err = platform.NewHosted(cfg)
		if err != nil {
			return nil, err
		}
	}
	if d.invoker == nil {
		d.invoker = chainload.NewFileInvoker(cfg, nil)
	}
	if d.scheduler == nil {
		d.scheduler = deferred.NewTimerScheduler(cfg.BootDelay, d.logger)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}

	d.flash = NewFlashManager(d.table, uint64(cfg.AllocAlign), d.logger)
	d.booter = NewBooter(d.buf, d.table, d.invoker, cfg.CmdLine, d.logger)
	return d, nil
}

// Register adds a command to the dispatcher registry
func (d *Dispatcher) Register(name string, handler HandlerFunc, cookie any) error {
	return d.registry.Register(name, handler, cookie)
}

// Commands lists the registered command names in lookup order
func (d *Dispatcher) Commands() []string {
	return d.registry.Names()
}

// Buffer returns the shared I/O buffer
func (d *Dispatcher) Buffer() *iobuf.Buffer {
	return d.buf
}

// FlashBoot boots the system partition of the flash device, it only
// returns on failure when the handoff succeeds
func (d *Dispatcher) FlashBoot() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.terminal.Load() {
		return lkerror.New("terminal action pending", lkerror.Busy)
	}
	return d.booter.FlashBoot()
}

// TerminalPending reports whether a boot or reboot is scheduled
func (d *Dispatcher) TerminalPending() bool {
	return d.terminal.Load()
}

// Dispatch runs the named command. The returned error message is the
// failure reported to the remote side.
func (d *Dispatcher) Dispatch(ctx context.Context, s types.Session, name, arg string, length uint32) (err error) {
	ctx, span := d.tracer.Start(ctx, "lkboot.dispatch", trace.WithAttributes(
		attribute.String("lkboot.command", name),
		attribute.String("lkboot.arg", arg),
		attribute.Int64("lkboot.length", int64(length)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.terminal.Load() {
		return lkerror.New("terminal action pending", lkerror.Busy)
	}

	if cmd, ok := d.registry.Lookup(name); ok {
		d.logger.Debugf("dispatching '%s' to registered handler", name)
		span.SetAttributes(attribute.Bool("lkboot.registered", true))
		return cmd.Handler(ctx, s, arg, length, cmd.Cookie)
	}

	if !d.buf.Fits(uint64(length)) {
		return lkerror.New("buffer too small", lkerror.InvalidInput)
	}

	d.logger.Debugf("command '%s' arg '%s' len %d", name, arg, length)
	switch name {
	case constants.CmdFlash:
		return d.flashPartition(s, arg, length, true)
	case constants.CmdErase:
		return d.flashPartition(s, arg, length, false)
	case constants.CmdRemove:
		return d.removePartition(arg)
	case constants.CmdFPGA:
		return d.programFPGA(s, length)
	case constants.CmdBoot:
		return d.boot(s, length)
	case constants.CmdGetSysparam:
		return d.getSysparam(s, arg)
	case constants.CmdReboot:
		return d.reboot()
	default:
		return lkerror.New("unknown command", lkerror.InvalidInput)
	}
}

// stage reads exactly length payload bytes into the shared buffer
func (d *Dispatcher) stage(s types.Session, length uint32) ([]byte, error) {
	payload := d.buf.Payload()[:length]
	if _, err := io.ReadFull(s, payload); err != nil {
		d.logger.Debugf("reading %d payload bytes: %s", length, err)
		return nil, lkerror.New("io error", lkerror.TransportIO)
	}
	return payload, nil
}

func (d *Dispatcher) flashPartition(s types.Session, name string, length uint32, write bool) error {
	entry, err := d.flash.Resolve(name, uint64(length))
	if err != nil {
		return err
	}
	payload, err := d.stage(s, length)
	if err != nil {
		return err
	}
	if err = d.flash.Erase(entry); err != nil {
		return err
	}
	if write {
		return d.flash.Write(entry, payload)
	}
	return nil
}

func (d *Dispatcher) removePartition(name string) error {
	if err := d.table.Remove(name); err != nil {
		d.logger.Debugf("removing partition '%s': %s", name, err)
		return lkerror.New("remove failed", lkerror.NotFound)
	}
	return nil
}

func (d *Dispatcher) programFPGA(s types.Session, length uint32) error {
	if !d.platform.FPGASupported() {
		return lkerror.New("no fpga", lkerror.Unsupported)
	}
	payload, err := d.stage(s, length)
	if err != nil {
		return err
	}
	if err = d.platform.ResetFPGA(); err != nil {
		d.logger.Errorf("resetting fpga: %s", err)
	}
	if err = d.platform.ProgramFPGA(d.buf.PayloadPhys(), payload); err != nil {
		d.logger.Errorf("programming fpga: %s", err)
	}
	return nil
}

// boot stages the image and schedules the jump. An empty image is
// rejected since there is nothing to chain load.
func (d *Dispatcher) boot(s types.Session, length uint32) error {
	if length == 0 {
		return lkerror.New("empty image", lkerror.InvalidInput)
	}
	if _, err := d.stage(s, length); err != nil {
		return err
	}
	d.terminal.Store(true)
	d.scheduler.Schedule(constants.BootTask, func() {
		if err := d.booter.BootStaged(uint64(length)); err != nil {
			d.logger.Errorf("boot failed: %s", err)
			d.terminal.Store(false)
		}
	})
	return nil
}

// getSysparam writes the parameter value back, a missing parameter is an
// empty successful response
func (d *Dispatcher) getSysparam(s types.Session, name string) error {
	value, err := d.sysparams.Get(name)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			d.logger.Warnf("reading sysparam '%s': %s", name, err)
		}
		return nil
	}
	if _, err = s.Write(value); err != nil {
		d.logger.Debugf("writing sysparam '%s': %s", name, err)
		return lkerror.New("io error", lkerror.TransportIO)
	}
	return nil
}

func (d *Dispatcher) reboot() error {
	d.terminal.Store(true)
	d.scheduler.Schedule(constants.RebootTask, func() {
		if err := d.platform.Reboot(); err != nil {
			d.logger.Errorf("reboot failed: %s", err)
			d.terminal.Store(false)
		}
	})
	return nil
}
