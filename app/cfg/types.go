package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	SchedulerInterval int
	SourceDelay       int
	APIAccessKey      string

	// AI enrichment configuration
	AIEndpoint     string
	AIFastEndpoint string
	AIAPIKey       string
	AIModel        string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
