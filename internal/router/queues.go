package router

import (
	"fmt"
	"strings"

	"github.com/dyluth/tandem/internal/config"
	"github.com/dyluth/tandem/pkg/board"
)

// QueueRequest carries the hints used to pick a destination queue.
type QueueRequest struct {
	Queue   string // Explicit destination, wins when known
	Project string // Matched against queue id, name and aliases
	Text    string // Title and description, for alias and keyword scans
}

// Resolution is the outcome of queue inference.
type Resolution struct {
	Queue    string
	Division string
	Fallback bool   // Explicit queue was unknown; the default was used
	Note     string // Audit note explaining a fallback
}

// QueueResolver picks a destination queue within one authority.
type QueueResolver struct {
	authority    board.Authority
	queues       []config.QueueConfig
	fallback     []config.KeywordRoute
	defaultQueue config.QueueConfig
	all          map[string]board.Authority
}

// NewQueueResolver builds the resolver for authority from cfg.
// cfg must have passed Validate.
func NewQueueResolver(cfg *config.TandemConfig, authority board.Authority) *QueueResolver {
	r := &QueueResolver{
		authority: authority,
		queues:    cfg.QueuesFor(authority),
		all:       make(map[string]board.Authority, len(cfg.Queues)),
	}
	for _, q := range cfg.Queues {
		r.all[q.ID] = q.Authority
	}
	for _, q := range r.queues {
		if q.Default {
			r.defaultQueue = q
		}
	}
	if authority == board.AuthorityMirror {
		r.fallback = cfg.Routing.MirrorFallback
	} else {
		r.fallback = cfg.Routing.PrimaryFallback
	}
	return r
}

// Authority returns the authority this resolver serves.
func (r *QueueResolver) Authority() board.Authority {
	return r.authority
}

// DefaultQueue returns the authority's fallback queue id.
func (r *QueueResolver) DefaultQueue() string {
	return r.defaultQueue.ID
}

// Resolve picks a queue: explicit queue, then project match, then an alias
// found in the text, then the keyword fallback table, then the default.
//
// An explicit queue owned by the other authority is ignored so each branch
// of a shared task resolves within its own tower; the resolution carries a
// note saying so. A queue nobody owns falls back to the default with
// Fallback set.
func (r *QueueResolver) Resolve(req QueueRequest) Resolution {
	explicit := strings.ToLower(strings.TrimSpace(req.Queue))
	if explicit == "" {
		return r.resolveImplicit(req)
	}
	if q, ok := r.byID(explicit); ok {
		return r.resolved(q)
	}
	owner, known := r.all[explicit]
	if !known {
		res := r.resolved(r.defaultQueue)
		res.Fallback = true
		res.Note = fmt.Sprintf("unknown queue %q, fell back to %s", req.Queue, r.defaultQueue.ID)
		return res
	}
	res := r.resolveImplicit(req)
	res.Note = fmt.Sprintf("queue %q belongs to %s, resolved within %s", explicit, owner, r.authority)
	return res
}

func (r *QueueResolver) resolveImplicit(req QueueRequest) Resolution {
	if project := strings.ToLower(strings.TrimSpace(req.Project)); project != "" {
		for _, q := range r.queues {
			if matchesProject(q, project) {
				return r.resolved(q)
			}
		}
	} else {
		text := strings.ToLower(req.Text)
		for _, q := range r.queues {
			for _, alias := range q.Aliases {
				if alias != "" && strings.Contains(text, strings.ToLower(alias)) {
					return r.resolved(q)
				}
			}
		}
	}

	text := strings.ToLower(req.Text)
	for _, route := range r.fallback {
		if containsAny(text, lowerAll(route.Keywords)) {
			if q, ok := r.byID(route.Queue); ok {
				return r.resolved(q)
			}
		}
	}

	return r.resolved(r.defaultQueue)
}

func (r *QueueResolver) byID(id string) (config.QueueConfig, bool) {
	for _, q := range r.queues {
		if q.ID == id {
			return q, true
		}
	}
	return config.QueueConfig{}, false
}

func (r *QueueResolver) resolved(q config.QueueConfig) Resolution {
	return Resolution{Queue: q.ID, Division: q.Division}
}

func matchesProject(q config.QueueConfig, project string) bool {
	if strings.Contains(strings.ToLower(q.ID), project) || strings.Contains(strings.ToLower(q.Name), project) {
		return true
	}
	for _, alias := range q.Aliases {
		alias = strings.ToLower(alias)
		if alias != "" && (strings.Contains(alias, project) || strings.Contains(project, alias)) {
			return true
		}
	}
	return false
}
