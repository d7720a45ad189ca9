package dispatch

import (
	"fmt"

	"github.com/roach88/specialize/internal/ir"
)

// Execute evaluates the node's argument sources against frame and
// dispatches the resulting values.
func (n *Node) Execute(frame ...ir.Value) (ir.Value, error) {
	if len(n.sources) != n.set.arity {
		return nil, fmt.Errorf("node %s: %d sources for arity %d: %w", n.Ref(), len(n.sources), n.set.arity, ErrArity)
	}
	args := make(ir.Args, len(n.sources))
	for i, src := range n.sources {
		v, err := src.Evaluate(frame)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Ref(), err)
		}
		args[i] = v
	}
	return n.Dispatch(args)
}

// Dispatch resolves and executes one call.
//
// The returned error is either an *UnsupportedSpecializationError, an
// ErrArity mismatch, or an implementation error passed through unchanged.
// Errors matching a rewrite kind of the specialization that raised them are
// never returned.
func (n *Node) Dispatch(args ir.Args) (ir.Value, error) {
	if len(args) != n.set.arity {
		return nil, fmt.Errorf("node %s: got %d arguments, want %d: %w", n.Ref(), len(args), n.set.arity, ErrArity)
	}

	n.calls++
	call := n.calls
	n.emit(Event{Call: call, Kind: EventCall, Detail: args.String()})

	v, err := n.resolve(call, args)
	if err != nil {
		n.emit(Event{Call: call, Kind: EventError, Detail: err.Error()})
		return nil, err
	}
	n.emit(Event{Call: call, Kind: EventResult, Detail: v.String()})
	return v, nil
}

func (n *Node) resolve(call int64, args ir.Args) (ir.Value, error) {
	// Active-chain pass. A rewrite removes the current entry, so the next
	// entry slides into position i.
	for i := 0; i < n.chain.len(); {
		e := &n.set.entries[n.chain.ids[i]]
		if !n.matches(call, e, args, PhaseActive) {
			i++
			continue
		}
		v, rewritten, err := n.run(call, e, args, PhaseActive)
		if rewritten {
			continue
		}
		return v, err
	}

	// Discovery pass over untried specializations in declaration order.
	for i := range n.set.entries {
		e := &n.set.entries[i]
		if n.chain.state(e.id) != StateUntried {
			continue
		}
		if !n.matches(call, e, args, PhaseDiscovery) {
			continue
		}

		phase := PhaseGeneric
		if n.chain.len() < n.maxActive {
			phase = PhaseDiscovery
			n.chain.install(e.id)
			n.emit(Event{Call: call, Kind: EventInstall, Specialization: e.spec.Name})
			n.logger.Debug("specialization installed",
				"node", n.id,
				"kind", n.set.kind,
				"specialization", e.spec.Name,
				"chain_len", n.chain.len())

			ok := n.guardsPass(call, e, args, PhaseConfirm)
			n.emit(Event{Call: call, Kind: EventConfirm, Specialization: e.spec.Name, Passed: ok})
			if !ok {
				continue
			}
		}

		v, rewritten, err := n.run(call, e, args, phase)
		if rewritten {
			continue
		}
		return v, err
	}

	// Total miss.
	if fb := n.set.fallback; fb != nil {
		n.fallbackCalls++
		n.emit(Event{Call: call, Kind: EventFallback, Specialization: fb.Name})
		n.logger.Debug("fallback", "node", n.id, "kind", n.set.kind, "fallback", fb.Name)
		return result(fb.Impl(args))
	}

	n.emit(Event{Call: call, Kind: EventMiss})
	n.logger.Debug("unsupported specialization", "node", n.id, "kind", n.set.kind, "args", args.String())
	return nil, newUnsupported(n, args)
}

// matches applies the type constraint, then the guards.
func (n *Node) matches(call int64, e *entry, args ir.Args, phase Phase) bool {
	if !e.spec.acceptsTypes(args) {
		return false
	}
	return n.guardsPass(call, e, args, phase)
}

// guardsPass evaluates guards left to right, short-circuiting on the first
// false. Every evaluation is counted.
func (n *Node) guardsPass(call int64, e *entry, args ir.Args, phase Phase) bool {
	for i, g := range e.spec.Guards {
		idx := e.guards[i]
		n.guardCalls[idx]++
		ok := n.set.guardTests[idx](args)
		n.emit(Event{Call: call, Kind: EventGuard, Phase: phase, Specialization: e.spec.Name, Guard: g.Name, Passed: ok})
		if !ok {
			return false
		}
	}
	return true
}

// run executes a specialization. When the implementation fails with one of
// the declared rewrite kinds, the specialization is excluded and rewritten
// is true; the error is consumed.
func (n *Node) run(call int64, e *entry, args ir.Args, phase Phase) (v ir.Value, rewritten bool, err error) {
	n.execCounts[e.id]++
	n.emit(Event{Call: call, Kind: EventExecute, Phase: phase, Specialization: e.spec.Name})

	v, err = result(e.spec.Impl(args))
	if err != nil && e.spec.RewritesOn(err) {
		n.rewrite(call, e, rewriteSignal{specialization: e.spec.Name, cause: err})
		return nil, true, nil
	}
	return v, false, err
}

func (n *Node) rewrite(call int64, e *entry, sig rewriteSignal) {
	wasActive := n.chain.exclude(e.id)
	n.emit(Event{Call: call, Kind: EventRewrite, Specialization: e.spec.Name, Detail: sig.cause.Error()})
	n.logger.Info("specialization rewritten",
		"node", n.id,
		"kind", n.set.kind,
		"specialization", sig.specialization,
		"was_active", wasActive,
		"cause", sig.cause)
}

func (n *Node) emit(ev Event) {
	ev.Seq = n.clock.Next()
	ev.Node = n.id
	n.recorder.Record(ev)
}

// result normalizes a nil value with a nil error to ir.Null.
func result(v ir.Value, err error) (ir.Value, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return ir.Null{}, nil
	}
	return v, nil
}
