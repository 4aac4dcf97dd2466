// Package controller implements the Adaptation Controller: the startup
// sequence that brings an application up over a topology, and the
// steady-state loop that reacts to node failures by re-routing the
// invocation path without disturbing an already-working placement.
//
// Grounded on original_source/artifact.py's main(): load descriptors,
// start monitoring, place, start containers, solve a first invocation
// path, then loop on failure events re-solving only the path — the same
// division of labor the original's while loop performs between
// start_placement (once) and self_adapt (every cycle).
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"edgeorch/internal/agent"
	"edgeorch/internal/history"
	"edgeorch/internal/model"
	"edgeorch/internal/monitor"
	"edgeorch/internal/probe"
	"edgeorch/internal/solver"
	"edgeorch/pkg/apperror"
	"edgeorch/pkg/audit"
	"edgeorch/pkg/metrics"
	"edgeorch/pkg/telemetry"
)

// Dependencies bundles every collaborator the Controller drives. None of
// them are owned by the Controller — callers build and close them.
type Dependencies struct {
	AgentClient *agent.Client
	Prober      *probe.Prober
	Monitor     *monitor.Monitor
	Placer      *solver.PlacementSolver
	Pather      *solver.PathSolver
	Oracle      solver.LatencyOracle
	PathCache   *solver.PathCache
	History     history.Repository
	Auditor     audit.Logger
	Log         *slog.Logger
}

// Controller owns the live Topology/Placement/InvocationPath for one
// running Application and reacts to monitor.FailureEvents.
type Controller struct {
	deps Dependencies
	app  model.Application

	topo      *model.Topology
	placement model.Placement
	path      model.InvocationPath
}

// New builds a Controller. deps.Log may be nil.
func New(deps Dependencies, app model.Application) *Controller {
	return &Controller{deps: deps, app: app}
}

// Topology returns the live topology (for reporting/inspection only —
// callers must not mutate it outside the Controller's own goroutine).
func (c *Controller) Topology() *model.Topology { return c.topo }

// Placement returns the current placement.
func (c *Controller) Placement() model.Placement { return c.placement }

// Path returns the current invocation path.
func (c *Controller) Path() model.InvocationPath { return c.path }

// ErrNoFeasiblePath is returned by Start or the steady-state loop when no
// invocation path satisfies the application's SLA over the current
// placement — the orchestrator cannot recover and must be restarted with
// more edge nodes, matching the original's terminal "more available edge
// nodes are required" branch.
var ErrNoFeasiblePath = fmt.Errorf("no invocation path satisfies the application SLA")

// Start runs the one-time bring-up sequence: probe resources, place the
// application, deploy containers, and solve a first invocation path. The
// resulting Topology/Placement/Path are stored as the Controller's live
// state; Start itself returns only an error.
func (c *Controller) Start(ctx context.Context, nodes []model.Node, deployer ContainerDeployer) error {
	ctx, span := telemetry.StartSpan(ctx, "Controller.Start")
	defer span.End()

	start := time.Now()
	c.topo = model.NewTopology(nodes)

	c.logf("probing node resources")
	results := c.deps.Prober.Probe(ctx, c.topo)
	probe.ApplyTo(c.topo, results)
	for _, down := range probe.DownNodes(results) {
		c.topo.Remove(down)
	}
	metrics.Get().SetNodesDown(c.topo.DownCount())

	for _, n := range c.topo.Nodes() {
		c.deps.Monitor.Watch(ctx, *n)
	}

	c.logf("solving placement")
	placeStart := time.Now()
	placement, err := c.deps.Placer.Solve(c.app, c.topo)
	metrics.Get().RecordSolveOperation("placement", err == nil, time.Since(placeStart))
	if err != nil {
		return apperror.Wrap(err, apperror.CodePlacementInfeasible, "initial placement failed")
	}
	c.placement = placement
	for _, ms := range c.app.Microservices {
		metrics.Get().RecordPlacementReplicas(string(ms.ID), len(placement[ms.ID]))
	}

	if deployer != nil {
		c.logf("deploying containers")
		if err := deployer.Deploy(ctx, c.app, c.placement, c.topo); err != nil {
			return fmt.Errorf("deploy containers: %w", err)
		}
	}

	path, feasible, err := c.solvePath(ctx)
	if err != nil {
		return err
	}
	c.path = path
	if feasible {
		c.pushInvocationPath(ctx, path)
	}

	degraded := c.placement.IsDegraded(c.app)
	c.recordEvent(ctx, model.TriggerStartup, nil, degraded, feasible, time.Since(start))

	if !feasible {
		return ErrNoFeasiblePath
	}
	return nil
}

// ContainerDeployer pushes containers and application wiring to the
// nodes a placement selected. Implemented by internal/agent-backed
// deployment code outside this package; kept as a narrow interface here
// so Controller's tests can stub it out.
type ContainerDeployer interface {
	Deploy(ctx context.Context, app model.Application, placement model.Placement, topo *model.Topology) error
}

// Run drains monitor.FailureEvents until ctx is cancelled or no feasible
// invocation path can be found, at which point it returns
// ErrNoFeasiblePath. Each failure reacts by dropping the node from the
// topology and placement and re-solving only the invocation path — the
// placement itself is never recomputed, matching the original's
// update_placement_solution (strip the failed node from the existing
// solution) rather than a fresh start_placement call.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.deps.Monitor.Failures():
			if !ok {
				return nil
			}
			if err := c.reactToFailure(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) reactToFailure(ctx context.Context, ev monitor.FailureEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "Controller.reactToFailure")
	defer span.End()

	start := time.Now()
	c.logf("node failure detected, re-adapting", "node_id", ev.NodeID, "url", ev.URL)

	c.topo.Remove(ev.NodeID)
	c.placement.RemoveNode(ev.NodeID)
	c.deps.Monitor.Unwatch(model.Node{ID: ev.NodeID, URL: ev.URL})
	metrics.Get().SetNodesDown(c.topo.DownCount())
	degraded := c.placement.IsDegraded(c.app)

	path, feasible, err := c.solvePath(ctx)
	if err != nil {
		return err
	}

	if feasible {
		c.path = path
		c.pushInvocationPath(ctx, path)
	}

	c.recordEvent(ctx, model.TriggerNodeFailure, []model.NodeID{ev.NodeID}, degraded, feasible, time.Since(start))

	if !feasible {
		return ErrNoFeasiblePath
	}
	return nil
}

func (c *Controller) solvePath(ctx context.Context) (model.InvocationPath, bool, error) {
	if c.placement.IsDegraded(c.app) {
		return nil, false, nil
	}

	if c.deps.PathCache != nil {
		if path, feasible, hit, err := c.deps.PathCache.Get(ctx, c.placement); err == nil && hit {
			c.logf("invocation path cache hit")
			return path, feasible, nil
		}
	}

	lt, err := c.deps.Oracle.Build(ctx, c.topo)
	if err != nil {
		return nil, false, fmt.Errorf("build latency table: %w", err)
	}

	pathStart := time.Now()
	path, feasible := c.deps.Pather.Solve(c.app, c.placement, lt, c.topo)
	metrics.Get().RecordSolveOperation("path", true, time.Since(pathStart))

	if feasible {
		avail := solver.PathAvailability(path, c.topo)
		latency := solver.PathLatency(c.app, path, lt)
		metrics.Get().SetSLAMargin("availability", avail-c.app.SLA.Availability)
		metrics.Get().SetSLAMargin("e2e_latency", float64(c.app.SLA.E2ELatency-latency))
	}

	if c.deps.PathCache != nil {
		if err := c.deps.PathCache.Set(ctx, c.placement, path, feasible); err != nil {
			c.logf("failed to cache invocation path", "error", err)
		}
	}

	return path, feasible, nil
}

func (c *Controller) recordEvent(ctx context.Context, trigger model.AdaptationTrigger, failed []model.NodeID, degraded, feasible bool, dur time.Duration) {
	event := model.AdaptationEvent{
		Trigger:       trigger,
		FailedNodeIDs: failed,
		Placement:     c.placement.Clone(),
		Degraded:      degraded,
		Path:          c.path.Clone(),
		PathFeasible:  feasible,
		Duration:      dur,
		OccurredAt:    time.Now(),
	}

	if c.deps.History != nil {
		if _, err := c.deps.History.Record(ctx, event); err != nil {
			c.logf("failed to persist adaptation event", "error", err)
		}
	}

	metrics.Get().RecordAdaptation(string(trigger), feasible)

	outcome := audit.OutcomeSuccess
	if !feasible {
		outcome = audit.OutcomeFailure
	}
	entry := audit.NewEntry().
		Service("edgeorch").
		Method("Controller.adapt").
		Action(audit.ActionSolve).
		Outcome(outcome).
		Duration(dur).
		Meta("trigger", string(trigger)).
		Meta("degraded", degraded).
		Meta("path_feasible", feasible).
		Build()

	if c.deps.Auditor != nil {
		if err := c.deps.Auditor.Log(ctx, entry); err != nil {
			c.logf("failed to write audit entry", "error", err)
		}
	} else if err := audit.Log(ctx, entry); err != nil {
		c.logf("failed to write audit entry", "error", err)
	}
}

// pushInvocationPath hands the solved full-id -> node-id path to every live
// node's agent, completing the "knowledge push" half of deployment that
// AgentDeployer.Deploy cannot do on its own since the path is only known
// after the first Path Solver run. Best-effort: a node that rejects the
// push still has its prior routing knowledge and will pick up the next
// successful push.
func (c *Controller) pushInvocationPath(ctx context.Context, path model.InvocationPath) {
	if c.deps.AgentClient == nil {
		return
	}
	payload := make(map[string]int64, len(path))
	for m, n := range path {
		payload[string(m)] = int64(n)
	}
	for _, node := range c.topo.Nodes() {
		if err := c.deps.AgentClient.PushInvocationPath(ctx, *node, payload); err != nil {
			c.logf("failed to push invocation path", "node_id", node.ID, "error", err)
		}
	}
}

func (c *Controller) logf(msg string, args ...any) {
	if c.deps.Log != nil {
		c.deps.Log.Info(msg, args...)
	}
}
