// internal/poller/discovery.go
package poller

import (
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/modbus-iopoints/internal/codec"
	"github.com/tamzrod/modbus-iopoints/internal/fault"
)

// ErrAlreadyDiscovered is returned by a second Discover call.
var ErrAlreadyDiscovered = errors.New("poller: capabilities already discovered")

// Discover reads the capability registers of every group slot.
// Reads are dispatched together; each one fills only its own slot.
// A failed group is logged and left unset (degraded), never fatal.
// Returns the number of groups discovered.
func (p *Poller) Discover() (int, error) {
	p.capMu.Lock()
	defer p.capMu.Unlock()

	if p.discovered {
		return 0, ErrAlreadyDiscovered
	}

	slots := make([]*codec.Capability, p.cfg.Groups)

	var g errgroup.Group
	for i := 0; i < p.cfg.Groups; i++ {
		g.Go(func() error {
			slots[i] = p.discoverGroup(i)
			return nil
		})
	}
	_ = g.Wait()

	found := 0
	for _, c := range slots {
		if c != nil {
			found++
		}
	}

	p.caps = slots
	p.discovered = true
	return found, nil
}

func (p *Poller) discoverGroup(slot int) *codec.Capability {
	group := slot + 1
	addr := codec.CapabilityAddress(slot)

	regs, err := p.client.ReadHoldingRegisters(addr, codec.CapabilityWords)
	if err == nil && len(regs) < codec.CapabilityWords {
		err = errShortRead
	}
	if err != nil {
		f := fault.Classify(err)
		p.log.Error("capability discovery failed",
			"board", p.cfg.BoardID,
			"group", group,
			"addr", addr,
			"reason", f.Error(),
		)
		p.health.Disable(group, f)
		return nil
	}

	c := codec.DecodeCapability(group, regs[0], regs[1])

	if c.DI > codec.WordBits || c.DO > codec.WordBits {
		p.log.Warn("group reports more digital IO than one register holds; extra points ignored",
			"board", p.cfg.BoardID,
			"group", group,
			"di", c.DI,
			"do", c.DO,
		)
	}

	p.log.Info("group discovered",
		"board", p.cfg.BoardID,
		"group", group,
		"di", c.DI,
		"do", c.DO,
		"ai", c.AI,
		"ao", c.AO,
		"serial", c.Serial,
	)
	return &c
}
