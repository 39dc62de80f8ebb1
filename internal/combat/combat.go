package combat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/damage"
	"github.com/suderio/skirmish/internal/effects"
	"github.com/suderio/skirmish/internal/engine"
	"github.com/suderio/skirmish/internal/fog"
	"github.com/suderio/skirmish/internal/rules"
	"github.com/suderio/skirmish/internal/turn"
)

type options struct {
	id         string
	rng        engine.RNG
	logger     *slog.Logger
	now        func() time.Time
	catalog    *action.Catalog
	checker    action.Checker
	tracker    *fog.Tracker
	calc       []damage.Option
	historyCap int
	logCap     int
	env        map[string]string
}

type Option func(*options)

func WithID(id string) Option { return func(o *options) { o.id = id } }

func WithRNG(r engine.RNG) Option { return func(o *options) { o.rng = r } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithCatalog supplies the skills, items and effects actions may reference.
func WithCatalog(c *action.Catalog) Option { return func(o *options) { o.catalog = c } }

// WithChecker replaces the CEL evaluator used for skill requirements.
func WithChecker(c action.Checker) Option { return func(o *options) { o.checker = c } }

// WithFog shares a tracker with the caller. By default each combat gets its
// own tracker over an open grid.
func WithFog(t *fog.Tracker) Option { return func(o *options) { o.tracker = t } }

func WithCritical(chance, multiplier float64) Option {
	return func(o *options) { o.calc = append(o.calc, damage.WithCritical(chance, multiplier)) }
}

// WithCapacity bounds the transition history and the combat log.
func WithCapacity(history, log int) Option {
	return func(o *options) {
		o.historyCap = history
		o.logCap = log
	}
}

// WithEnvironment sets free-form encounter tags such as terrain or weather.
func WithEnvironment(env map[string]string) Option { return func(o *options) { o.env = env } }

// Combat is one encounter. It is not safe for concurrent use; callers
// serialize access, as session.Engine does.
type Combat struct {
	state    *engine.CombatState
	bus      *engine.Bus
	machine  *Machine
	queue    *turn.Queue
	pipeline *effects.Pipeline
	resolver *action.Resolver
	fog      *fog.Tracker
	now      func() time.Time
	logger   *slog.Logger

	critChance float64
}

// New registers combatants in a fresh not_started combat.
func New(combatants []*engine.Combatant, opts ...Option) (*Combat, error) {
	o := defaults(opts)
	if o.id == "" {
		o.id = uuid.NewString()
	}
	state := engine.NewCombatState(o.id, o.historyCap, o.logCap, o.now())
	for k, v := range o.env {
		state.Environment[k] = v
	}
	for _, c := range combatants {
		if err := state.Add(c); err != nil {
			return nil, err
		}
	}
	return build(state, o)
}

// Restore rebuilds a combat from a snapshot, phase and turn order included.
func Restore(snap *engine.Snapshot, opts ...Option) (*Combat, error) {
	if snap == nil {
		return nil, engine.NotFound("snapshot", "")
	}
	state, err := engine.StateFromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", snap.ID, err)
	}
	return build(state, defaults(opts))
}

func defaults(opts []Option) *options {
	o := &options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = engine.NewRNG(0)
	}
	return o
}

func build(state *engine.CombatState, o *options) (*Combat, error) {
	logger := o.logger.With("combat", state.ID)
	bus := engine.NewBus(logger)
	bus.Subscribe(func(evt engine.Event) { state.Record(evt, o.now()) })

	checker := o.checker
	if checker == nil {
		ev, err := rules.NewEvaluator(o.rng)
		if err != nil {
			return nil, fmt.Errorf("rules evaluator: %w", err)
		}
		checker = ev
	}

	pipeline := effects.New(effects.WithPublisher(bus), effects.WithLogger(logger))
	calc := damage.New(o.rng, append(o.calc, damage.WithModifier(pipeline), damage.WithLogger(logger))...)

	tracker := o.tracker
	if tracker == nil {
		tracker = fog.New(fog.NewGrid(1), fog.WithRNG(o.rng), fog.WithLogger(logger))
	}

	c := &Combat{
		state:    state,
		bus:      bus,
		pipeline: pipeline,
		resolver: action.New(calc, pipeline, o.catalog, action.WithChecker(checker), action.WithLogger(logger)),
		fog:      tracker,
		now:      o.now,
		logger:   logger,

		critChance: calc.DefaultChance(),
	}
	c.machine = NewMachine(state, bus, o.now, logger)
	c.queue = turn.New(state, o.rng, turn.WithLogger(logger), turn.WithRoundHook(c.machine.AdvanceRound))
	c.queue.Subscribe(c)
	bus.Subscribe(c.retrack)

	for _, cb := range state.Ordered() {
		c.register(cb)
	}
	return c, nil
}

// register gives cb the encounter's critical chance when it declares none and
// hands it to the fog tracker.
func (c *Combat) register(cb *engine.Combatant) {
	if cb.CriticalChance == nil {
		v := c.critChance
		cb.CriticalChance = &v
	}
	c.track(cb)
}

func (c *Combat) track(cb *engine.Combatant) {
	u := profile(cb)
	u.Position = cb.Position
	c.fog.UpdateEntity(cb.ID, u)
}

// retrack copies stealth and detection to the fog tracker after an effect
// changed them.
func (c *Combat) retrack(evt engine.Event) {
	var id string
	switch e := evt.(type) {
	case *engine.EffectAppliedEvent:
		id = e.TargetID
	case *engine.EffectRemovedEvent:
		id = e.TargetID
	default:
		return
	}
	cb, err := c.state.Get(id)
	if err != nil {
		return
	}
	c.fog.UpdateEntity(id, profile(cb))
}

// profile maps stealth and detection onto a fog update. Zero means the
// tracker default.
func profile(cb *engine.Combatant) fog.Update {
	stealth, detection := cb.Stealth, cb.Detection
	if stealth == 0 {
		stealth = fog.DefaultProfile
	}
	if detection == 0 {
		detection = fog.DefaultProfile
	}
	return fog.Update{Stealth: &stealth, Detection: &detection}
}

func (c *Combat) ID() string { return c.state.ID }
func (c *Combat) Phase() engine.Phase { return c.state.Phase }
func (c *Combat) Round() int { return c.state.Round }
func (c *Combat) Current() string { return c.queue.Current() }
func (c *Combat) Order() []string { return c.queue.Order() }
func (c *Combat) Victor() engine.Faction { return c.state.Victor }
func (c *Combat) Machine() *Machine { return c.machine }
func (c *Combat) Fog() *fog.Tracker { return c.fog }
func (c *Combat) Catalog() *action.Catalog { return c.resolver.Catalog() }
func (c *Combat) History() []engine.Transition { return c.machine.History() }

// Combatant looks up a live combatant by id.
func (c *Combat) Combatant(id string) (*engine.Combatant, error) { return c.state.Get(id) }

// Snapshot deep-copies the current state.
func (c *Combat) Snapshot() *engine.Snapshot { return c.state.Snapshot() }

// Subscribe attaches h to this combat's event bus.
func (c *Combat) Subscribe(h engine.Handler) (unsubscribe func()) { return c.bus.Subscribe(h) }

// Start rolls initiative, activates the combat and begins the first turn.
func (c *Combat) Start(ctx context.Context) error {
	if err := c.machine.Transition(ctx, engine.PhaseInitialization); err != nil {
		return err
	}
	c.queue.Initialize(c.state.Ordered())
	if err := c.machine.Transition(ctx, engine.PhaseActive); err != nil {
		return err
	}
	if first := c.queue.Current(); first != "" {
		c.TurnStarted(first)
		c.bus.Publish(&engine.TurnAdvancedEvent{Next: first, Round: c.state.Round})
	}
	err := c.settle(ctx, "")
	c.mustHold()
	return err
}

// Submit resolves req for the combatant holding the turn, then ends that
// turn. Rejected requests change nothing.
func (c *Combat) Submit(ctx context.Context, req action.Request) (*action.Outcome, error) {
	out, err := c.resolver.Resolve(c.state, c.machine, req)
	if err != nil {
		return nil, err
	}
	c.bus.Publish(out.Event())
	if out.Destination != nil {
		c.fog.UpdateEntity(req.SourceID, fog.Update{Position: out.Destination})
	}

	if err := c.settle(ctx, req.SourceID); err != nil {
		return out, err
	}
	if c.state.Phase == engine.PhaseActive {
		if err := c.react(ctx, req.SourceID, req.Kind); err != nil {
			return out, err
		}
	}
	// a reaction that killed the actor has already moved the turn on
	if c.state.Phase == engine.PhaseActive && c.queue.Current() == req.SourceID {
		c.advance()
		if err := c.settle(ctx, ""); err != nil {
			return out, err
		}
	}
	c.mustHold()
	return out, nil
}

// Ready spends id's turn holding req until trigger fires. watchID narrows the
// trigger to one combatant; empty watches every enemy.
func (c *Combat) Ready(ctx context.Context, id string, trigger engine.ReadyTrigger, watchID string, req action.Request) error {
	if !trigger.Valid() {
		return engine.Reject("unknown ready trigger %q", trigger)
	}
	switch req.Kind {
	case action.KindAttack, action.KindSkill, action.KindItem:
	default:
		return engine.Reject("only attacks, skills and items can be readied, not %q", req.Kind)
	}
	if err := c.resolver.Validate(c.state, c.machine, action.Request{Kind: action.KindPass, SourceID: id}); err != nil {
		return err
	}
	if watchID != "" {
		if watchID == id {
			return engine.Reject("%s cannot watch itself", id)
		}
		if _, err := c.state.Get(watchID); err != nil {
			return err
		}
	}
	req.SourceID = id
	if err := c.resolver.ValidateOutOfTurn(c.state, c.machine, req); err != nil {
		return err
	}

	cb := c.state.Combatants[id]
	cb.Readied = &engine.ReadiedAction{
		Trigger:   trigger,
		WatchID:   watchID,
		Kind:      string(req.Kind),
		SkillID:   req.SkillID,
		ItemID:    req.ItemID,
		TargetIDs: append([]string(nil), req.TargetIDs...),
		Round:     c.state.Round,
	}
	c.logger.Info("action readied", "combatant", id, "trigger", trigger, "watch", watchID, "kind", req.Kind)
	c.bus.Publish(&engine.ActionExecutedEvent{Kind: "ready", SourceID: id, TargetIDs: cb.Readied.TargetIDs, Detail: string(trigger)})

	c.advance()
	err := c.settle(ctx, "")
	c.mustHold()
	return err
}

// react fires the readied actions that actorID's action of kind sets off, in
// registration order. Each fires once; reactions do not trigger reactions.
func (c *Combat) react(ctx context.Context, actorID string, kind action.Kind) error {
	actor := c.state.Combatants[actorID]
	for _, cb := range c.state.Ordered() {
		r := cb.Readied
		if r == nil || cb.ID == actorID || !cb.Alive() || !r.Trigger.Fires(string(kind)) {
			continue
		}
		if r.WatchID != "" && r.WatchID != actorID {
			continue
		}
		if r.WatchID == "" && (actor == nil || !action.TargetEnemy.Allows(cb, actor)) {
			continue
		}
		if c.state.Phase != engine.PhaseActive {
			return nil
		}

		cb.Readied = nil
		req := action.Request{
			Kind:      action.Kind(r.Kind),
			SourceID:  cb.ID,
			SkillID:   r.SkillID,
			ItemID:    r.ItemID,
			TargetIDs: r.TargetIDs,
		}
		out, err := c.resolver.ResolveOutOfTurn(c.state, c.machine, req)
		if err != nil {
			c.logger.Info("readied action fizzled", "combatant", cb.ID, "error", err)
			continue
		}
		c.logger.Info("readied action fired", "combatant", cb.ID, "trigger", r.Trigger, "by", actorID)
		c.bus.Publish(out.Event())
		if err := c.settle(ctx, cb.ID); err != nil {
			return err
		}
	}
	return nil
}

// Validate dry-runs req.
func (c *Combat) Validate(req action.Request) error {
	return c.resolver.Validate(c.state, c.machine, req)
}

func (c *Combat) advance() {
	prev, next := c.queue.Advance()
	if next == "" {
		return
	}
	c.bus.Publish(&engine.TurnAdvancedEvent{Previous: prev, Next: next, Round: c.state.Round})
}

// settle reaps the dead, checks for victory and skips a vacated turn until
// the combat is stable.
func (c *Combat) settle(ctx context.Context, killer string) error {
	for {
		c.reap(killer)
		ended, err := c.machine.CheckVictory(ctx)
		if err != nil {
			return err
		}
		if ended {
			c.fog.Reset()
			return nil
		}
		if c.state.Phase != engine.PhaseActive || !c.state.Turn.Vacated {
			return nil
		}
		c.advance()
		killer = ""
	}
}

func (c *Combat) reap(killer string) {
	for _, id := range c.queue.Order() {
		cb := c.state.Combatants[id]
		if cb == nil || cb.Alive() {
			continue
		}
		c.pipeline.Clear(cb, engine.ReasonDeath)
		cb.Readied = nil
		c.queue.Remove(id)
		if killer == id {
			killer = ""
		}
		c.logger.Info("combatant died", "combatant", id, "killer", killer)
		c.bus.Publish(&engine.CombatantDiedEvent{ID: id, KillerID: killer})
	}
}

// TurnStarted ticks start-of-turn effects. A readied action still held by id
// lapses here.
func (c *Combat) TurnStarted(id string) error {
	if cb := c.state.Combatants[id]; cb != nil && cb.Readied != nil {
		c.logger.Debug("readied action lapsed", "combatant", id, "trigger", cb.Readied.Trigger)
		cb.Readied = nil
	}
	return c.tick(id, true)
}

// TurnEnded ticks end-of-turn effects.
func (c *Combat) TurnEnded(id string) error {
	return c.tick(id, false)
}

func (c *Combat) tick(id string, start bool) error {
	cb, err := c.state.Get(id)
	if err != nil {
		return err
	}
	for _, r := range c.pipeline.Process(cb, start) {
		c.logger.Debug("effect ticked", "combatant", id, "effect", r.EffectID, "result", r.Type, "value", r.Value)
	}
	return nil
}

// End stops the combat for reason, concluding and archiving it from any
// running phase.
func (c *Combat) End(ctx context.Context, reason string) error {
	phase := c.state.Phase
	switch phase {
	case engine.PhasePaused:
		if err := c.machine.Resume(ctx); err != nil {
			return err
		}
		fallthrough
	case engine.PhaseActive:
		if err := c.machine.Transition(ctx, engine.PhasePostCombat); err != nil {
			return err
		}
		c.bus.Publish(&engine.CombatEndedEvent{Victor: c.state.Victor, Round: c.state.Round, Reason: reason})
		fallthrough
	case engine.PhasePostCombat:
		if err := c.machine.Transition(ctx, engine.PhaseEnded); err != nil {
			return err
		}
	default:
		return fmt.Errorf("end from %s: %w", phase, engine.ErrInvalidTransition)
	}
	c.fog.Reset()
	c.logger.Info("combat ended", "reason", reason, "victor", c.state.Victor, "round", c.state.Round)
	return nil
}

func (c *Combat) Pause(ctx context.Context) error { return c.machine.Pause(ctx) }
func (c *Combat) Resume(ctx context.Context) error { return c.machine.Resume(ctx) }

// Delay lets the combatant holding the turn act last this round.
func (c *Combat) Delay(ctx context.Context, id string) error {
	if !c.machine.CanPerformAction(action.KindPass) {
		return engine.Reject("combat is %s: cannot delay", c.state.Phase)
	}
	next, err := c.queue.Delay(id)
	if err != nil {
		return fmt.Errorf("%w: %w", engine.ErrValidation, err)
	}
	c.bus.Publish(&engine.TurnAdvancedEvent{Previous: id, Next: next, Round: c.state.Round})
	err = c.settle(ctx, "")
	c.mustHold()
	return err
}

// RecomputeInitiative overrides one combatant's score.
func (c *Combat) RecomputeInitiative(id string, value float64) error {
	return c.queue.RecomputeInitiative(id, value)
}

// AddCombatant joins cb to the combat. Once initiative has been rolled the
// newcomer rolls its own and slots into the order.
func (c *Combat) AddCombatant(cb *engine.Combatant) error {
	switch c.state.Phase {
	case engine.PhasePostCombat, engine.PhaseEnded:
		return engine.Reject("combat is %s: cannot add combatants", c.state.Phase)
	}
	if err := c.state.Add(cb); err != nil {
		return err
	}
	c.register(cb)
	if c.state.Phase == engine.PhaseActive || c.state.Phase == engine.PhasePaused {
		if cb.Alive() {
			if err := c.queue.Add(cb); err != nil {
				return err
			}
		}
	}
	c.mustHold()
	return nil
}

// RemoveCombatant takes id out of the fight entirely. Its effects are
// stripped and, if it held the turn, the next combatant's turn begins.
func (c *Combat) RemoveCombatant(ctx context.Context, id string) error {
	cb, err := c.state.Get(id)
	if err != nil {
		return err
	}
	c.pipeline.Clear(cb, engine.ReasonRemoved)
	c.queue.Remove(id)
	delete(c.state.Combatants, id)
	c.state.Roster = slices.DeleteFunc(c.state.Roster, func(r string) bool { return r == id })

	err = c.settle(ctx, "")
	c.mustHold()
	return err
}

// ApplyEffect puts a catalog effect on target. sourceID may be empty. It
// reports false when the target is immune or already saturated.
func (c *Combat) ApplyEffect(sourceID, targetID, effectID string) (bool, error) {
	target, err := c.state.Get(targetID)
	if err != nil {
		return false, err
	}
	var source *engine.Combatant
	if sourceID != "" {
		if source, err = c.state.Get(sourceID); err != nil {
			return false, err
		}
	}
	spec, err := c.resolver.Catalog().Effect(effectID)
	if err != nil {
		return false, err
	}
	ok, err := c.pipeline.Apply(source, target, spec)
	c.mustHold()
	return ok, err
}

func (c *Combat) RemoveEffect(targetID, effectID string) (bool, error) {
	target, err := c.state.Get(targetID)
	if err != nil {
		return false, err
	}
	return c.pipeline.Remove(target, effectID), nil
}

// Dispel removes up to limit effects of category from target.
func (c *Combat) Dispel(targetID string, category engine.EffectCategory, limit int) (int, error) {
	target, err := c.state.Get(targetID)
	if err != nil {
		return 0, err
	}
	return c.pipeline.Dispel(target, category, limit), nil
}

func (c *Combat) ClearEffects(targetID string) (int, error) {
	target, err := c.state.Get(targetID)
	if err != nil {
		return 0, err
	}
	return c.pipeline.Clear(target, engine.ReasonCleared), nil
}

// Available is what a combatant may do right now.
type Available struct {
	Kinds  []action.Kind `json:"kinds"`
	Skills []string      `json:"skills,omitempty"`
	Items  []string      `json:"items,omitempty"`
}

// AvailableActions lists the action kinds, affordable skills and usable items
// open to id. Outside its own turn the list is empty; under a disabling effect
// only pass remains.
func (c *Combat) AvailableActions(id string) (Available, error) {
	cb, err := c.state.Get(id)
	if err != nil {
		return Available{}, err
	}
	var av Available
	if !cb.Alive() || c.queue.Current() != id || c.state.Turn.Vacated {
		return av, nil
	}
	if !c.machine.CanPerformAction(action.KindPass) {
		return av, nil
	}
	if _, disabled := c.pipeline.Disabled(cb); disabled {
		av.Kinds = []action.Kind{action.KindPass}
		return av, nil
	}
	av.Skills, av.Items = c.resolver.Usable(cb)

	for _, other := range c.state.Ordered() {
		if other.Alive() && action.TargetEnemy.Allows(cb, other) {
			av.Kinds = append(av.Kinds, action.KindAttack)
			break
		}
	}
	if len(av.Skills) > 0 {
		av.Kinds = append(av.Kinds, action.KindSkill)
	}
	if len(av.Items) > 0 {
		av.Kinds = append(av.Kinds, action.KindItem)
	}
	av.Kinds = append(av.Kinds, action.KindMove, action.KindPass)
	return av, nil
}

// Living returns the living combatants of faction in registration order.
func (c *Combat) Living(faction engine.Faction) []*engine.Combatant {
	var out []*engine.Combatant
	for _, cb := range c.state.Ordered() {
		if cb.Alive() && cb.Faction == faction {
			out = append(out, cb)
		}
	}
	return out
}

// Enemies returns the living combatants hostile to id in registration order.
func (c *Combat) Enemies(id string) []*engine.Combatant {
	cb, ok := c.state.Combatants[id]
	if !ok {
		return nil
	}
	var out []*engine.Combatant
	for _, other := range c.state.Ordered() {
		if other.Alive() && action.TargetEnemy.Allows(cb, other) {
			out = append(out, other)
		}
	}
	return out
}

// Log returns up to n of the newest log entries.
func (c *Combat) Log(n int) []engine.LogEntry {
	return c.state.Log.Last(n)
}

func (c *Combat) mustHold() {
	if err := c.state.CheckInvariants(); err != nil {
		panic(err)
	}
}
