package recruit

import (
	"sort"

	"github.com/dyluth/tandem/pkg/board"
)

// Scoring weights.
const (
	idleBonus          = 2
	capabilityPoints   = 3
	divisionMatchBonus = 2
)

// Candidate is a scored, eligible worker. It exists only while a
// recruitment is being decided.
type Candidate struct {
	WorkerID    string            `json:"worker_id"`
	OriginQueue string            `json:"origin_queue"`
	OriginState board.WorkerState `json:"origin_state"`
	Score       int               `json:"score"`
}

// Score rates w for req. Zero means the worker is excluded: already on the
// target queue, in a non-recruitable state, outside the requested authority,
// or simply without anything to offer.
func Score(w board.Worker, req board.SwarmRequest, divisions map[string]string) int {
	if w.Queue == req.TargetQueue || !w.State.Recruitable() {
		return 0
	}
	if !req.AllowCrossAuthority && !inScope(req.Authority, w.Authority) {
		return 0
	}

	score := 0
	if w.State == board.WorkerIdle {
		score += idleBonus
	}
	for _, capability := range req.RequiredCapabilities {
		if w.HasCapability(capability) {
			score += capabilityPoints
		}
		if division, ok := divisions[capability]; ok && w.Division != "" && division == w.Division {
			score += divisionMatchBonus
		}
	}
	return score
}

// inScope reports whether a worker of authority worker may serve requested.
// An empty request authority places no restriction.
func inScope(requested, worker board.Authority) bool {
	if requested == "" || worker == board.AuthorityBoth {
		return true
	}
	return requested.Includes(worker)
}

// rank sorts candidates by descending score, then id, and keeps the top limit.
func rank(candidates []Candidate, limit int) []Candidate {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].WorkerID < candidates[j].WorkerID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
