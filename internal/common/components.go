package common

const (
	ComponentIndexer    = "indexer"
	ComponentIngester   = "ingester"
	ComponentSource     = "checkpoint-source"
	ComponentFilter     = "filter"
	ComponentDispatcher = "dispatcher"
	ComponentProcessor  = "processor"
	ComponentStore      = "store"
	ComponentNotifier   = "notifier"
	ComponentMetrics    = "metrics"
	ComponentAPI        = "api"
)

var AllComponents = map[string]struct{}{
	ComponentIndexer:    {},
	ComponentIngester:   {},
	ComponentSource:     {},
	ComponentFilter:     {},
	ComponentDispatcher: {},
	ComponentProcessor:  {},
	ComponentStore:      {},
	ComponentNotifier:   {},
	ComponentMetrics:    {},
	ComponentAPI:        {},
}
