package sim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"automated-kingdom/server/internal/world"
	"automated-kingdom/server/logging"
	"automated-kingdom/server/logging/economy"
	"automated-kingdom/server/logging/lifecycle"
	"automated-kingdom/server/logging/navigation"
)

const (
	pathRequestsMetricKey = "sim_path_requests_total"
	pathFailuresMetricKey = "sim_path_failures_total"
	pathExpandedMetricKey = "sim_path_expanded_total"
	agentsMetricKey       = "sim_agents"
	yieldsMetricKey       = "sim_collision_yields_total"
)

// Engine defines the minimal surface area exposed to non-simulation callers.
type Engine interface {
	Apply([]Command) error
	Step(dt float64)
	Snapshot() Snapshot
	Tick() uint64
}

// World owns a tile map and everything moving or standing on it. It is not
// safe for concurrent use; callers serialise access.
type World struct {
	cfg    Config
	deps   Deps
	seed   string
	tiles  *world.TileMap
	finder world.PathFinder

	ids          IDAllocator
	agents       map[AgentID]*Agent
	players      map[PlayerColor]*Player
	ores         map[OreID]*OrePatch
	nextOre      OreID
	buildings    map[BuildingID]*Building
	nextBuilding BuildingID

	tick    uint64
	elapsed float64
	ctx     context.Context
}

// NewWorld wraps an existing tile map. The map is owned by the world from
// here on.
func NewWorld(tiles *world.TileMap, seed string, cfg Config, deps Deps) (*World, error) {
	if tiles == nil {
		return nil, fmt.Errorf("new world: %w", world.ErrInvalidDimensions)
	}
	cfg = cfg.normalized()
	return &World{
		cfg:       cfg,
		deps:      deps.normalized(),
		seed:      seed,
		tiles:     tiles,
		finder:    cfg.PathFinder(),
		agents:    make(map[AgentID]*Agent),
		players:   make(map[PlayerColor]*Player),
		ores:      make(map[OreID]*OrePatch),
		buildings: make(map[BuildingID]*Building),
		ctx:       context.Background(),
	}, nil
}

// GenerateWorld builds the map for worldCfg, places ore patches and seats
// cfg.Players players with their starting workers around the spawn centre.
func GenerateWorld(worldCfg world.Config, cfg Config, deps Deps) (*World, error) {
	worldCfg = worldCfg.Normalized()
	tiles, err := world.GenerateTileMap(worldCfg)
	if err != nil {
		return nil, fmt.Errorf("generate world: %w", err)
	}
	w, err := NewWorld(tiles, worldCfg.Seed, cfg, deps)
	if err != nil {
		return nil, err
	}

	for _, origin := range world.GenerateOreSites(tiles, worldCfg) {
		if _, err := w.AddOrePatch(OreGold, origin, worldCfg.OrePatchSize, worldCfg.OrePatchSize, worldCfg.OreAmount); err != nil {
			return nil, fmt.Errorf("generate world: %w", err)
		}
	}

	spawnCells := spawnRing(tiles, world.SpawnCenter(tiles))
	next := 0
	for _, color := range PlayerColors[:w.cfg.Players] {
		w.AddPlayer(color)
		for i := 0; i < w.cfg.WorkersPerPlayer && next < len(spawnCells); i++ {
			if _, err := w.Spawn(color, world.CellToWorld(spawnCells[next])); err != nil {
				return nil, fmt.Errorf("generate world: %w", err)
			}
			next++
		}
	}
	return w, nil
}

// spawnRing lists walkable cells ordered by distance from center.
func spawnRing(m *world.TileMap, center world.GridCell) []world.GridCell {
	cells := make([]world.GridCell, 0)
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			cell := world.GridCell{X: x, Y: y}
			if m.Walkable(cell) {
				cells = append(cells, cell)
			}
		}
	}
	sort.SliceStable(cells, func(i, j int) bool {
		return world.ChebyshevDistance(cells[i], center) < world.ChebyshevDistance(cells[j], center)
	})
	return cells
}

// Seed returns the seed the world was generated from.
func (w *World) Seed() string {
	if w == nil {
		return ""
	}
	return w.seed
}

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 {
	if w == nil {
		return 0
	}
	return w.tick
}

// Elapsed returns the simulated seconds since the world started.
func (w *World) Elapsed() float64 {
	if w == nil {
		return 0
	}
	return w.elapsed
}

// TileMap exposes the terrain for read-only queries.
func (w *World) TileMap() *world.TileMap {
	if w == nil {
		return nil
	}
	return w.tiles
}

// Config returns the normalised configuration.
func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.cfg
}

// AddPlayer seats color if it is not already present.
func (w *World) AddPlayer(color PlayerColor) *Player {
	if player, ok := w.players[color]; ok {
		return player
	}
	player := newPlayer(color)
	w.players[color] = player
	return player
}

// Player returns a copy of a player's state.
func (w *World) Player(color PlayerColor) (Player, bool) {
	player, ok := w.players[color]
	if !ok {
		return Player{}, false
	}
	return clonePlayer(player), true
}

// Spawn creates an agent for owner at pos.
func (w *World) Spawn(owner PlayerColor, pos world.Vec2) (AgentID, error) {
	if _, ok := w.players[owner]; !ok {
		return 0, fmt.Errorf("spawn: %w: %q", ErrUnknownPlayer, owner)
	}
	if _, err := w.tiles.Locate(pos); err != nil {
		return 0, fmt.Errorf("spawn: %w", err)
	}
	id := w.ids.Next()
	agent, err := NewAgent(id, owner, pos, w.cfg.AgentSpeed)
	if err != nil {
		return 0, fmt.Errorf("spawn: %w", err)
	}
	w.agents[id] = agent
	w.storeAgentCount()
	lifecycle.AgentSpawned(w.ctx, w.deps.Publisher, w.tick, agent.entityRef(), lifecycle.AgentSpawnedPayload{
		Owner:  string(owner),
		SpawnX: pos.X,
		SpawnY: pos.Y,
		Speed:  agent.Speed,
	}, nil)
	return id, nil
}

// Remove deletes an agent and any yield relation pointing at it.
func (w *World) Remove(id AgentID, reason string) error {
	agent, ok := w.agents[id]
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrUnknownAgent)
	}
	delete(w.agents, id)
	for _, other := range w.agents {
		if other.IsYieldingTo(id) {
			other.YieldingTo = nil
		}
	}
	w.storeAgentCount()
	lifecycle.AgentRemoved(w.ctx, w.deps.Publisher, w.tick, agent.entityRef(), lifecycle.AgentRemovedPayload{Reason: reason}, nil)
	return nil
}

// Agent returns a copy of an agent's state.
func (w *World) Agent(id AgentID) (Agent, bool) {
	agent, ok := w.agents[id]
	if !ok {
		return Agent{}, false
	}
	return cloneAgent(agent), true
}

// AgentIDs lists live agents in ascending id order.
func (w *World) AgentIDs() []AgentID {
	ids := make([]AgentID, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *World) sortedAgents() []*Agent {
	ids := w.AgentIDs()
	agents := make([]*Agent, len(ids))
	for i, id := range ids {
		agents[i] = w.agents[id]
	}
	return agents
}

// RequestPath plans a route for the agent to goal and replaces its path.
// It also cancels any ore assignment. A missing route is not an error: the
// agent is left idle and ok is false.
func (w *World) RequestPath(id AgentID, goal world.GridCell) (bool, error) {
	agent, ok := w.agents[id]
	if !ok {
		return false, fmt.Errorf("path %d: %w", id, ErrUnknownAgent)
	}
	if !w.tiles.InBounds(goal) {
		return false, fmt.Errorf("path %d: %w: (%d,%d)", id, world.ErrOutOfBounds, goal.X, goal.Y)
	}
	agent.Ore = nil
	agent.Mining = false
	return w.planPath(agent, goal)
}

// RequestPathTo is RequestPath for a world position.
func (w *World) RequestPathTo(id AgentID, target world.Vec2) (bool, error) {
	goal, err := w.tiles.Locate(target)
	if err != nil {
		return false, fmt.Errorf("path %d: %w", id, err)
	}
	return w.RequestPath(id, goal)
}

func (w *World) planPath(agent *Agent, goal world.GridCell) (bool, error) {
	start, err := w.tiles.Locate(agent.Position)
	if err != nil {
		agent.ClearPath()
		return false, fmt.Errorf("path %d: %w", agent.ID, err)
	}

	result := w.finder.Search(w.tiles, start, goal)
	w.addMetric(pathRequestsMetricKey, 1)
	w.addMetric(pathExpandedMetricKey, uint64(result.Expanded))
	if !result.Found {
		agent.ClearPath()
		w.addMetric(pathFailuresMetricKey, 1)
		navigation.PathNotFound(w.ctx, w.deps.Publisher, w.tick, agent.entityRef(), navigation.PathNotFoundPayload{
			Start:     navCell(start),
			Goal:      navCell(goal),
			Expanded:  result.Expanded,
			Truncated: result.Truncated,
		}, nil)
		return false, nil
	}

	agent.SetPath(result.Path)
	estimate, _ := world.PathTime(agent.Position, agent.Speed, agent.Path)
	navigation.PathResolved(w.ctx, w.deps.Publisher, w.tick, agent.entityRef(), navigation.PathResolvedPayload{
		Start:            navCell(start),
		Goal:             navCell(goal),
		Steps:            result.Steps(),
		Expanded:         result.Expanded,
		EstimatedSeconds: estimate,
	}, nil)
	return true, nil
}

func navCell(cell world.GridCell) navigation.Cell {
	return navigation.Cell{X: cell.X, Y: cell.Y}
}

// ClearPath stops the agent where it stands.
func (w *World) ClearPath(id AgentID) error {
	agent, ok := w.agents[id]
	if !ok {
		return fmt.Errorf("clear path %d: %w", id, ErrUnknownAgent)
	}
	agent.ClearPath()
	agent.Ore = nil
	agent.Mining = false
	return nil
}

// EstimateArrival returns the seconds the agent needs to finish its path.
func (w *World) EstimateArrival(id AgentID) (float64, error) {
	agent, ok := w.agents[id]
	if !ok {
		return 0, fmt.Errorf("estimate %d: %w", id, ErrUnknownAgent)
	}
	return world.PathTime(agent.Position, agent.Speed, agent.Path)
}

// AddOrePatch places a patch and blocks its cells.
func (w *World) AddOrePatch(kind OreKind, origin world.GridCell, width, height, amount int) (OreID, error) {
	patch, err := NewOrePatch(w.nextOre+1, kind, origin, width, height, amount)
	if err != nil {
		return 0, err
	}
	cells := patch.Cells()
	for _, cell := range cells {
		if !w.tiles.Walkable(cell) {
			return 0, fmt.Errorf("ore patch at (%d,%d): %w", origin.X, origin.Y, ErrPlacementBlocked)
		}
	}
	if err := w.tiles.MarkBlocked(cells...); err != nil {
		return 0, err
	}
	w.nextOre = patch.ID
	w.ores[patch.ID] = patch
	return patch.ID, nil
}

// OrePatch returns a copy of a patch's state.
func (w *World) OrePatch(id OreID) (OrePatch, bool) {
	patch, ok := w.ores[id]
	if !ok {
		return OrePatch{}, false
	}
	return cloneOrePatch(patch), true
}

// OreIDs lists patches in ascending id order.
func (w *World) OreIDs() []OreID {
	ids := make([]OreID, 0, len(w.ores))
	for id := range w.ores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AssignOre sends the agent to mine a patch. The agent walks there on its own
// during the following ticks.
func (w *World) AssignOre(id AgentID, oreID OreID) error {
	agent, ok := w.agents[id]
	if !ok {
		return fmt.Errorf("mine %d: %w", id, ErrUnknownAgent)
	}
	if _, ok := w.ores[oreID]; !ok {
		return fmt.Errorf("mine %d: %w: %d", id, ErrUnknownOre, oreID)
	}
	assigned := oreID
	agent.Ore = &assigned
	agent.ClearPath()
	return nil
}

// PlaceBuilding charges owner for kind and blocks its footprint at origin.
// The footprint must be walkable and free of agents.
func (w *World) PlaceBuilding(owner PlayerColor, kind BuildingKind, origin world.GridCell) (BuildingID, error) {
	id, err := w.placeBuilding(owner, kind, origin)
	if err != nil {
		economy.BuildingRejected(w.ctx, w.deps.Publisher, w.tick, logging.EntityRef{ID: string(owner), Kind: logging.EntityKindPlayer}, economy.BuildingRejectedPayload{
			Kind:   string(kind),
			X:      origin.X,
			Y:      origin.Y,
			Reason: err.Error(),
		}, nil)
		return 0, err
	}
	return id, nil
}

func (w *World) placeBuilding(owner PlayerColor, kind BuildingKind, origin world.GridCell) (BuildingID, error) {
	player, ok := w.players[owner]
	if !ok {
		return 0, fmt.Errorf("build: %w: %q", ErrUnknownPlayer, owner)
	}
	spec, err := LookupBuilding(kind)
	if err != nil {
		return 0, fmt.Errorf("build: %w", err)
	}
	building := &Building{
		ID:     w.nextBuilding + 1,
		Kind:   kind,
		Owner:  owner,
		Origin: origin,
		Width:  spec.Width,
		Height: spec.Height,
	}
	cells := building.Cells()
	for _, cell := range cells {
		if !w.tiles.Walkable(cell) {
			return 0, fmt.Errorf("build at (%d,%d): %w", origin.X, origin.Y, ErrPlacementBlocked)
		}
	}
	rect := building.Rect()
	for _, agent := range w.sortedAgents() {
		if agent.Footprint().Overlaps(rect) {
			return 0, fmt.Errorf("build at (%d,%d): %w: agent %d in the way", origin.X, origin.Y, ErrPlacementBlocked, agent.ID)
		}
	}
	if err := player.Spend(spec.Cost); err != nil {
		return 0, fmt.Errorf("build %s: %w", kind, err)
	}
	if err := w.tiles.MarkBlocked(cells...); err != nil {
		return 0, err
	}
	w.nextBuilding = building.ID
	w.buildings[building.ID] = building
	economy.BuildingPlaced(w.ctx, w.deps.Publisher, w.tick, player.entityRef(), economy.BuildingPlacedPayload{
		Kind: string(kind),
		X:    origin.X,
		Y:    origin.Y,
		Cost: spec.Cost[OreGold],
	}, nil)
	return building.ID, nil
}

// Buildings lists placed buildings in ascending id order.
func (w *World) Buildings() []Building {
	ids := make([]BuildingID, 0, len(w.buildings))
	for id := range w.buildings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Building, len(ids))
	for i, id := range ids {
		out[i] = *w.buildings[id]
	}
	return out
}

// Step advances the world by dt seconds. Every agent first updates its ore
// work and desired motion, then collisions are resolved against the
// tentative footprints of all agents, then every agent commits. Non-positive
// or non-finite dt leaves the world untouched.
func (w *World) Step(dt float64) {
	if w == nil || math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return
	}
	w.tick++
	w.elapsed += dt

	agents := w.sortedAgents()
	for _, agent := range agents {
		agent.YieldingTo = nil
		w.updateOre(agent)
	}
	for _, agent := range agents {
		stepMotion(agent, dt)
		agent.Facing = ResolveHeading(agent.velocity.X, agent.velocity.Y, agent.Facing)
	}

	yields := resolveCollisions(w.tiles, agents, dt, w.cfg.PushSpeed)
	if len(yields) > 0 {
		w.addMetric(yieldsMetricKey, uint64(len(yields)))
		for _, yield := range yields {
			navigation.AgentYielded(w.ctx, w.deps.Publisher, w.tick, yield.agent.entityRef(), yield.yieldingTo.entityRef(), navigation.AgentYieldedPayload{
				YieldingTo: uint32(yield.yieldingTo.ID),
			})
		}
	}

	for _, agent := range agents {
		commitMotion(agent)
	}
}

// updateOre mines when the agent is within reach of its assigned patch and
// otherwise walks it to the nearest open cell next to the patch.
func (w *World) updateOre(agent *Agent) {
	agent.Mining = false
	if agent.Ore == nil {
		return
	}
	patch, ok := w.ores[*agent.Ore]
	if !ok || patch.Depleted() {
		agent.Ore = nil
		return
	}

	if patch.InReach(agent) {
		agent.ClearPath()
		agent.Mining = true
		if amount := patch.Mine(agent.ID, w.elapsed); amount > 0 {
			player := w.players[agent.Owner]
			stock := 0
			if player != nil {
				player.Credit(patch.Kind, amount)
				stock = player.Stockpile[patch.Kind]
			}
			economy.OreMined(w.ctx, w.deps.Publisher, w.tick, agent.entityRef(), patch.entityRef(), economy.OreMinedPayload{
				Kind:      string(patch.Kind),
				Owner:     string(agent.Owner),
				Remaining: patch.Remaining,
				Stockpile: stock,
			}, nil)
			if patch.Depleted() {
				economy.OreDepleted(w.ctx, w.deps.Publisher, w.tick, patch.entityRef(), economy.OreDepletedPayload{Kind: string(patch.Kind)}, nil)
			}
		}
		return
	}

	if agent.Path != nil {
		return
	}
	from, err := w.tiles.Locate(agent.Position)
	if err != nil {
		agent.Ore = nil
		return
	}
	goal, ok := patch.ApproachCell(w.tiles, from)
	if !ok {
		agent.Ore = nil
		return
	}
	if found, _ := w.planPath(agent, goal); !found {
		agent.Ore = nil
	}
}

func (w *World) addMetric(key string, delta uint64) {
	if w.deps.Metrics != nil {
		w.deps.Metrics.Add(key, delta)
	}
}

func (w *World) storeAgentCount() {
	if w.deps.Metrics != nil {
		w.deps.Metrics.Store(agentsMetricKey, uint64(len(w.agents)))
	}
}

func cloneAgent(agent *Agent) Agent {
	clone := *agent
	clone.Path = world.ClonePath(agent.Path)
	if agent.YieldingTo != nil {
		yield := *agent.YieldingTo
		clone.YieldingTo = &yield
	}
	if agent.Ore != nil {
		ore := *agent.Ore
		clone.Ore = &ore
	}
	return clone
}

func clonePlayer(player *Player) Player {
	clone := Player{Color: player.Color, Stockpile: make(map[OreKind]int, len(player.Stockpile))}
	for kind, amount := range player.Stockpile {
		clone.Stockpile[kind] = amount
	}
	return clone
}

func cloneOrePatch(patch *OrePatch) OrePatch {
	clone := *patch
	clone.lastMined = make(map[AgentID]float64, len(patch.lastMined))
	for id, at := range patch.lastMined {
		clone.lastMined[id] = at
	}
	return clone
}
