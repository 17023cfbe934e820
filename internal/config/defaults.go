package config

import (
	"time"

	"github.com/dyluth/tandem/pkg/board"
)

// Default returns the built-in organization: five primary queues, seven
// mirror queues, the keyword tables and a small roster. The result is
// already validated.
func Default() *TandemConfig {
	detached := false
	cfg := &TandemConfig{
		Version:    "1.0",
		Instance:   "default",
		HealthAddr: ":8080",
		Logging:    LoggingConfig{Level: "info"},
		Queues: []QueueConfig{
			{ID: "flagship", Name: "Flagship", Authority: board.AuthorityPrimary, Division: "engineering", Aliases: []string{"tsiapp"}, Default: true},
			{ID: "security", Name: "Security", Authority: board.AuthorityPrimary, Division: "security"},
			{ID: "legal", Name: "Legal", Authority: board.AuthorityPrimary, Division: "legal"},
			{ID: "research", Name: "Research Lab", Authority: board.AuthorityPrimary, Division: "research"},
			{ID: "finance", Name: "Finance", Authority: board.AuthorityPrimary, Division: "finance"},

			{ID: "production", Name: "Production", Authority: board.AuthorityMirror, Division: "operations", Aliases: []string{"tsiapp"}},
			{ID: "sync", Name: "Sync", Authority: board.AuthorityMirror, Division: "operations"},
			{ID: "monitoring", Name: "Monitoring", Authority: board.AuthorityMirror, Division: "operations", Attached: &detached},
			{ID: "certs", Name: "Certificates", Authority: board.AuthorityMirror, Division: "operations", Attached: &detached},
			{ID: "dns", Name: "DNS", Authority: board.AuthorityMirror, Division: "operations", Attached: &detached},
			{ID: "backup", Name: "Backup", Authority: board.AuthorityMirror, Division: "operations", Attached: &detached},
			{ID: "ops", Name: "Ops Desk", Authority: board.AuthorityMirror, Division: "operations", Default: true},
		},
		Routing: RoutingConfig{
			CrossCutting: []string{"full-stack", "full stack", "release", "migrate", "migration", "sync"},
			BuildKeywords: []string{
				"build", "design", "test", "code", "feature", "bug", "fix", "refactor",
				"frontend", "implement", "prototype", "review",
			},
			InfraKeywords: []string{
				"deploy", "server", "infra", "dns", "ssl", "certificate", "monitor",
				"backup", "nginx", "uptime", "subdomain", "hosting", "cron",
			},
			PrimaryFallback: []KeywordRoute{
				{Keywords: []string{"security", "threat", "vulnerability"}, Queue: "security"},
				{Keywords: []string{"legal", "compliance", "contract"}, Queue: "legal"},
				{Keywords: []string{"research", "prototype", "experiment"}, Queue: "research"},
				{Keywords: []string{"finance", "budget", "invoice"}, Queue: "finance"},
			},
			MirrorFallback: []KeywordRoute{
				{Keywords: []string{"deploy"}, Queue: "production"},
				{Keywords: []string{"sync"}, Queue: "sync"},
				{Keywords: []string{"monitor", "uptime", "alert"}, Queue: "monitoring"},
				{Keywords: []string{"certificate", "ssl", "tls"}, Queue: "certs"},
				{Keywords: []string{"subdomain", "dns"}, Queue: "dns"},
				{Keywords: []string{"backup", "restore"}, Queue: "backup"},
			},
		},
		Workers: []board.Worker{
			{ID: "ava", Name: "Ava", Queue: "flagship", State: board.WorkerIdle, Division: "engineering", Capabilities: []string{"frontend", "testing"}},
			{ID: "ben", Name: "Ben", Queue: "flagship", State: board.WorkerBusy, Division: "engineering", Capabilities: []string{"backend", "api"}},
			{ID: "cleo", Name: "Cleo", Queue: "security", State: board.WorkerIdle, Division: "security", Capabilities: []string{"security", "testing"}},
			{ID: "dev", Name: "Dev", Queue: "legal", State: board.WorkerIdle, Division: "legal", Capabilities: []string{"compliance"}},
			{ID: "eli", Name: "Eli", Queue: "research", State: board.WorkerBusy, Division: "research", Capabilities: []string{"research", "design"}},
			{ID: "fay", Name: "Fay", Queue: "finance", State: board.WorkerIdle, Division: "finance", Capabilities: []string{"budgeting"}},
			{ID: "gus", Name: "Gus", Queue: "production", State: board.WorkerIdle, Division: "operations", Capabilities: []string{"deploy", "infra"}},
			{ID: "hal", Name: "Hal", Queue: "monitoring", State: board.WorkerIdle, Division: "operations", Capabilities: []string{"monitoring", "infra"}},
			{ID: "ivy", Name: "Ivy", Queue: "ops", State: board.WorkerBusy, Division: "operations", Capabilities: []string{"backup", "dns"}},
		},
		CapabilityDivisions: map[string]string{
			"frontend":   "engineering",
			"backend":    "engineering",
			"api":        "engineering",
			"testing":    "quality",
			"security":   "security",
			"compliance": "legal",
			"research":   "research",
			"design":     "research",
			"budgeting":  "finance",
			"deploy":     "operations",
			"infra":      "operations",
			"monitoring": "operations",
			"backup":     "operations",
			"dns":        "operations",
		},
		Simulation: SimulationConfig{AutoCompleteAfter: 20 * time.Second},
	}

	if err := cfg.Validate(); err != nil {
		panic("config: built-in defaults are invalid: " + err.Error())
	}
	return cfg
}
