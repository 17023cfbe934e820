package router

import (
	"testing"

	"github.com/dyluth/tandem/internal/config"
	"github.com/dyluth/tandem/pkg/board"
	"github.com/stretchr/testify/assert"
)

func TestQueueResolver_Primary(t *testing.T) {
	resolver := NewQueueResolver(config.Default(), board.AuthorityPrimary)
	assert.Equal(t, "flagship", resolver.DefaultQueue())
	assert.Equal(t, board.AuthorityPrimary, resolver.Authority())

	tests := []struct {
		name  string
		req   QueueRequest
		queue string
	}{
		{"explicit queue wins", QueueRequest{Queue: "legal", Text: "threat model"}, "legal"},
		{"explicit queue is case insensitive", QueueRequest{Queue: " Finance "}, "finance"},
		{"project alias", QueueRequest{Project: "TSIApp"}, "flagship"},
		{"project matches id", QueueRequest{Project: "research"}, "research"},
		{"project matches name", QueueRequest{Project: "lab"}, "research"},
		{"alias found in text", QueueRequest{Text: "Fix tsiapp login"}, "flagship"},
		{"security keyword", QueueRequest{Text: "Threat model for uploads"}, "security"},
		{"legal keyword", QueueRequest{Text: "GDPR compliance check"}, "legal"},
		{"research keyword", QueueRequest{Text: "Prototype voice search"}, "research"},
		{"finance keyword", QueueRequest{Text: "Q3 budget"}, "finance"},
		{"unmatched project uses keywords", QueueRequest{Project: "atlas", Text: "security audit"}, "security"},
		{"default", QueueRequest{Text: "Write onboarding docs"}, "flagship"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolver.Resolve(tt.req)
			assert.Equal(t, tt.queue, res.Queue)
			assert.False(t, res.Fallback)
			assert.Empty(t, res.Note)
		})
	}
}

func TestQueueResolver_Mirror(t *testing.T) {
	resolver := NewQueueResolver(config.Default(), board.AuthorityMirror)
	assert.Equal(t, "ops", resolver.DefaultQueue())

	tests := []struct {
		text  string
		queue string
	}{
		{"Deploy tsiapp", "production"},
		{"Deploy the landing page", "production"},
		{"Sync user directory", "sync"},
		{"Check uptime alerts", "monitoring"},
		{"Renew certificate", "certs"},
		{"Add subdomain for docs", "dns"},
		{"Nightly backup", "backup"},
		{"Rotate logs", "ops"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.queue, resolver.Resolve(QueueRequest{Text: tt.text}).Queue)
		})
	}
}

func TestQueueResolver_UnknownQueueFallsBack(t *testing.T) {
	resolver := NewQueueResolver(config.Default(), board.AuthorityPrimary)

	res := resolver.Resolve(QueueRequest{Queue: "narnia", Text: "security audit"})
	assert.Equal(t, "flagship", res.Queue)
	assert.Equal(t, "engineering", res.Division)
	assert.True(t, res.Fallback)
	assert.Contains(t, res.Note, "narnia")
}

func TestQueueResolver_OtherAuthorityQueueIsNoted(t *testing.T) {
	mirror := NewQueueResolver(config.Default(), board.AuthorityMirror)

	res := mirror.Resolve(QueueRequest{Queue: "Flagship", Text: "Deploy tsiapp"})
	assert.Equal(t, "production", res.Queue)
	assert.False(t, res.Fallback)
	assert.Equal(t, `queue "flagship" belongs to primary, resolved within mirror`, res.Note)

	primary := NewQueueResolver(config.Default(), board.AuthorityPrimary)
	res = primary.Resolve(QueueRequest{Queue: "dns", Text: "budget review"})
	assert.Equal(t, "finance", res.Queue)
	assert.Equal(t, `queue "dns" belongs to mirror, resolved within primary`, res.Note)
}
