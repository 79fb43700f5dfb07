package scheduler

import (
	"context"
	"math/rand"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// Result is the outcome of one engine invocation: the best grid across
// all restarts plus its metrics and the audit trail that produced it.
type Result struct {
	Timetable *models.Timetable
	Metrics   Metrics
	Cost      int
	Key       LexKey
	Audit     []string
	Restart   int
	Seed      int64

	// RelaxedClasses lists classes whose elective minima were shaved in
	// the targeted relaxation pass, when that pass produced the winner.
	RelaxedClasses []string

	// InfeasibleClasses lists classes whose shaved quota totals still
	// exceed fillable capacity. Non-empty means blanks are structural.
	InfeasibleClasses []string
}

// Converged reports whether the run reached a zero-cost grid.
func (r *Result) Converged() bool {
	return r.Cost == 0
}

// Engine runs the seed, fill, repair pipeline over independent restarts
// and keeps the best result by the lexicographic key. Each restart owns
// its grid, ledger, and random source; the engine itself is stateless
// and safe for concurrent Run calls.
type Engine struct {
	logger *zap.Logger
}

// relaxationSeedOffset separates the targeted pass's random stream from
// every regular restart.
const relaxationSeedOffset = 9999

func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Run executes the full pipeline. Structural input defects fail fast;
// infeasible quotas degrade to a result with blanks, never an error.
func (e *Engine) Run(ctx context.Context, in *Instance) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	params := in.Search.Normalize()

	var best *Result
	for restart := 0; restart < params.Restarts; restart++ {
		if err := ctx.Err(); err != nil {
			if best != nil {
				return best, nil
			}
			return nil, err
		}
		seed := params.BaseSeed + int64(restart)
		res := e.singleRun(in, params, seed, restart, NoRelaxation())
		e.logger.Info("restart finished",
			zap.Int("restart", restart),
			zap.Int64("seed", seed),
			zap.Int("blanks", res.Metrics.Blanks),
			zap.Int("conflicts", res.Metrics.Conflicts()),
			zap.Int("cost", res.Cost),
		)
		if best == nil || res.Key.Less(best.Key) {
			best = res
		}
		if best.Converged() {
			break
		}
	}

	// Targeted pass: when blanks survive every restart, shave elective
	// minima for the still-blank classes only and try once more.
	if !best.Converged() && best.Metrics.Blanks > 0 {
		stuck := blankClasses(best.Timetable, in)
		if len(stuck) > 0 {
			seed := params.BaseSeed + relaxationSeedOffset
			res := e.singleRun(in, params, seed, params.Restarts, TargetedRelaxation(stuck...))
			res.RelaxedClasses = stuck
			e.logger.Info("targeted relaxation finished",
				zap.Strings("classes", stuck),
				zap.Int("blanks", res.Metrics.Blanks),
				zap.Int("cost", res.Cost),
			)
			if res.Key.Less(best.Key) {
				best = res
			}
		}
	}

	best.InfeasibleClasses = infeasibleClasses(in)
	return best, nil
}

func (e *Engine) singleRun(in *Instance, params SearchParams, seed int64, restart int, relax Relaxation) *Result {
	rng := rand.New(rand.NewSource(seed))

	run := *in
	run.Search = params
	if restart > 0 {
		run.Classes = shuffled(rng, in.Classes)
		run.Days = shuffled(rng, in.Days)
	}

	tt := models.NewTimetable()
	ledger := NewLedger()
	dir := NewDirectory(&run)
	quota := NewQuotaEngine(&run.Rules, run.Days, run.Slots)
	quota.SetRelaxation(relax)
	audit := newAuditTrail(e.logger)
	weights := run.Weights.Normalize()

	(&seeder{tt: tt, ledger: ledger, in: &run, dir: dir, audit: audit}).run()
	(&filler{tt: tt, ledger: ledger, in: &run, dir: dir, quota: quota, audit: audit}).run()
	newRepairer(tt, ledger, &run, dir, quota, audit, &weights, rng).run()

	m := ComputeMetrics(tt, &run)
	cost := weights.TotalCost(m)
	return &Result{
		Timetable: tt,
		Metrics:   m,
		Cost:      cost,
		Key:       m.Key(cost),
		Audit:     audit.Lines(),
		Restart:   restart,
		Seed:      seed,
	}
}

// blankClasses lists classes with at least one open teaching cell.
func blankClasses(tt *models.Timetable, in *Instance) []string {
	fixed := fixedCellSet(&in.Rules)
	var out []string
	for _, class := range in.Classes {
		open := 0
		for _, day := range in.Days {
			for _, slot := range models.TeachingSlots(in.Slots) {
				if _, fx := fixed[dayCell{day, slot.ID}]; fx {
					continue
				}
				if !tt.Occupied(class, day, slot.ID) {
					open++
				}
			}
		}
		if open > 0 {
			out = append(out, class)
		}
	}
	return out
}

// infeasibleClasses lists classes whose fully shaved targets still exceed
// fillable capacity.
func infeasibleClasses(in *Instance) []string {
	quota := NewQuotaEngine(&in.Rules, in.Days, in.Slots)
	var out []string
	for _, class := range in.Classes {
		total := 0
		for _, n := range quota.Normalized(class) {
			total += n
		}
		reserved := 0
		base := quota.Applicable(class)
		for subj := range in.Rules.ReservedSubjects() {
			reserved += base[subj]
		}
		if total > quota.Capacity()-reserved {
			out = append(out, class)
		}
	}
	return out
}

func shuffled(rng *rand.Rand, src []string) []string {
	out := append([]string(nil), src...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
