// Package assemble turns a catalog subset into merged, verified datasets
// keyed by instance identifier.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cordexkit/evaltools/internal/catalog"
	"github.com/cordexkit/evaltools/internal/domain"
	"github.com/cordexkit/evaltools/internal/fix"
	"github.com/cordexkit/evaltools/internal/observability"
)

// Opener opens one catalog entry's backing storage as a dataset. Opening is
// independent across entries; implementations may be called concurrently by
// callers that parallelize assembly.
type Opener interface {
	Open(ctx context.Context, entry catalog.Entry) (*domain.Dataset, error)
}

// AuditSink receives the verdicts of one assembly run, one event per entry
// or group, for post-hoc auditing beyond the log stream.
type AuditSink interface {
	Publish(ctx context.Context, verdicts []domain.Verdict) error
}

// Options control an Assemble call.
type Options struct {
	// MergeFx merges each run's fixed-field variables into every temporal
	// dataset of the same run.
	MergeFx bool
	// ApplyFixes runs the fix rules before merging.
	ApplyFixes bool
}

// AssemblyError reports that every group was rejected: an empty result
// mapping is never a valid success.
type AssemblyError struct {
	Rejected map[domain.Stage]int
}

func (e *AssemblyError) Error() string {
	parts := make([]string, 0, len(e.Rejected))
	for _, stage := range []domain.Stage{domain.StageOpen, domain.StageFix, domain.StageMerge, domain.StageVerify} {
		if n := e.Rejected[stage]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", stage, n))
		}
	}
	return "assembly produced no datasets (rejections by stage: " + strings.Join(parts, ", ") + ")"
}

// Assembler opens, fixes, merges, and verifies catalog subsets. Each group's
// pipeline operates on its own data exclusively; there is no shared mutable
// state between groups.
type Assembler struct {
	opener  Opener
	rules   []fix.Rule
	logger  *slog.Logger
	metrics *observability.Metrics
	audit   AuditSink
}

// New creates an Assembler. audit may be nil to disable audit publishing.
func New(opener Opener, rules []fix.Rule, logger *slog.Logger, metrics *observability.Metrics, audit AuditSink) *Assembler {
	return &Assembler{
		opener:  opener,
		rules:   rules,
		logger:  logger,
		metrics: metrics,
		audit:   audit,
	}
}

// member is one opened dataset with its catalog entry.
type member struct {
	entry catalog.Entry
	ds    *domain.Dataset
}

// group collects the opened datasets of one (run, frequency) pair.
type group struct {
	runKey    string
	frequency string
	members   []member
}

func (g *group) key() string { return g.runKey + "|" + g.frequency }

// Assemble opens every entry of the subset, groups the datasets by model
// run, applies fixes, merges each group, verifies the result, and returns
// the mapping from instance identifier to merged dataset.
//
// Per-entry and per-group failures are isolated: the entry or group is
// rejected, logged once, and assembly continues. Only a fully empty result
// is an error.
func (a *Assembler) Assemble(ctx context.Context, subset []catalog.Entry, opts Options) (map[string]*domain.Dataset, error) {
	start := time.Now()
	defer func() {
		a.metrics.AssemblyDuration.Observe(time.Since(start).Seconds())
	}()

	var verdicts []domain.Verdict
	rejected := make(map[domain.Stage]int)
	reject := func(id string, stage domain.Stage, reason string) {
		rejected[stage]++
		a.metrics.GroupsRejected.WithLabelValues(string(stage)).Inc()
		verdicts = append(verdicts, domain.Verdict{
			InstanceID: id,
			Outcome:    domain.OutcomeRejected,
			Stage:      stage,
			Reason:     reason,
			Time:       domain.Now(),
		})
	}

	groups := a.open(ctx, subset, reject)

	result := make(map[string]*domain.Dataset)
	for _, g := range sortedGroups(groups) {
		// When merging fixed fields, fx groups are consumed by their sibling
		// temporal groups instead of appearing in the result themselves.
		if opts.MergeFx && g.frequency == catalog.FxFrequency && hasTemporalSibling(groups, g.runKey) {
			continue
		}

		members := g.members
		if opts.MergeFx && g.frequency != catalog.FxFrequency {
			if fxGroup, ok := groups[g.runKey+"|"+catalog.FxFrequency]; ok {
				members = append(append([]member(nil), members...), fxGroup.members...)
			}
		}

		ds, verdict := a.assembleGroup(members, opts)
		verdicts = append(verdicts, verdict)
		if verdict.Outcome == domain.OutcomeRejected {
			rejected[verdict.Stage]++
			a.metrics.GroupsRejected.WithLabelValues(string(verdict.Stage)).Inc()
			a.logger.Warn("group rejected",
				"instance_id", verdict.InstanceID,
				"stage", verdict.Stage,
				"reason", verdict.Reason,
			)
			continue
		}

		if _, dup := result[verdict.InstanceID]; dup {
			a.logger.Warn("duplicate instance id, keeping first verified group", "instance_id", verdict.InstanceID)
			continue
		}
		result[verdict.InstanceID] = ds
		a.metrics.GroupsMerged.Inc()
	}

	a.publishAudit(ctx, verdicts)

	if len(result) == 0 {
		return nil, &AssemblyError{Rejected: rejected}
	}
	return result, nil
}

// open opens every entry, rejecting failures individually, and groups the
// opened datasets by (run key, frequency).
func (a *Assembler) open(ctx context.Context, subset []catalog.Entry, reject func(string, domain.Stage, string)) map[string]*group {
	groups := make(map[string]*group)
	for _, entry := range subset {
		iid := entry.InstanceID()
		ds, err := a.opener.Open(ctx, entry)
		if err != nil {
			a.metrics.OpenErrors.Inc()
			a.logger.Warn("open failed, entry rejected",
				"instance_id", iid.String(),
				"variable", entry.VariableID,
				"path", entry.Path,
				"error", err,
			)
			reject(iid.String(), domain.StageOpen, err.Error())
			continue
		}
		a.metrics.DatasetsOpened.Inc()

		g := &group{runKey: iid.RunKey(), frequency: entry.Frequency}
		if existing, ok := groups[g.key()]; ok {
			g = existing
		} else {
			groups[g.key()] = g
		}
		g.members = append(g.members, member{entry: entry, ds: ds})
	}
	return groups
}

// assembleGroup runs the fix, merge, and verify steps for one group and
// returns the merged dataset with its verdict.
func (a *Assembler) assembleGroup(members []member, opts Options) (*domain.Dataset, domain.Verdict) {
	iid := groupInstanceID(members)
	verdict := domain.Verdict{InstanceID: iid.String(), Time: domain.Now()}

	var applied []string
	if opts.ApplyFixes {
		seen := make(map[string]bool)
		for _, m := range members {
			ruleIDs, err := fix.Apply(m.ds, m.entry.InstanceID(), a.rules)
			for _, id := range ruleIDs {
				if !seen[id] {
					seen[id] = true
					applied = append(applied, id)
				}
				a.metrics.FixesApplied.Inc()
				a.logger.Info("fix applied",
					"instance_id", iid.String(),
					"variable", m.entry.VariableID,
					"rule", id,
				)
			}
			if err != nil {
				// The group proceeds unfixed; verification decides its fate.
				a.metrics.FixErrors.Inc()
				a.logger.Warn("fix failed, proceeding unfixed",
					"instance_id", iid.String(),
					"variable", m.entry.VariableID,
					"error", err,
				)
			}
		}
	}

	datasets := make([]*domain.Dataset, len(members))
	for i, m := range members {
		datasets[i] = m.ds
	}
	merged, err := domain.Merge(datasets...)
	if err != nil {
		verdict.Outcome = domain.OutcomeRejected
		verdict.Stage = domain.StageMerge
		verdict.Reason = err.Error()
		return nil, verdict
	}

	if err := Verify(merged); err != nil {
		verdict.Outcome = domain.OutcomeRejected
		verdict.Stage = domain.StageVerify
		verdict.Reason = err.Error()
		return nil, verdict
	}

	verdict.Outcome = domain.OutcomePass
	if len(applied) > 0 {
		verdict.Outcome = domain.OutcomeFixed
		verdict.FixesApplied = applied
	}
	return merged, verdict
}

// groupInstanceID derives the group key: the shared facets of the members,
// with the newest member version winning.
func groupInstanceID(members []member) domain.InstanceID {
	iid := members[0].entry.InstanceID()
	for _, m := range members[1:] {
		// fx members keep the temporal frequency and version out of the key.
		if m.entry.Frequency == catalog.FxFrequency && iid.Frequency != catalog.FxFrequency {
			continue
		}
		if v := m.entry.Version; v > iid.Version {
			iid.Version = v
		}
	}
	return iid
}

func hasTemporalSibling(groups map[string]*group, runKey string) bool {
	for _, g := range groups {
		if g.runKey == runKey && g.frequency != catalog.FxFrequency {
			return true
		}
	}
	return false
}

func sortedGroups(groups map[string]*group) []*group {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*group, len(keys))
	for i, k := range keys {
		out[i] = groups[k]
	}
	return out
}

func (a *Assembler) publishAudit(ctx context.Context, verdicts []domain.Verdict) {
	if a.audit == nil || len(verdicts) == 0 {
		return
	}
	if err := a.audit.Publish(ctx, verdicts); err != nil {
		// Auditing is a side channel; a failed publish never fails assembly.
		a.logger.Error("audit publish failed", "error", err, "verdicts", len(verdicts))
	}
}
