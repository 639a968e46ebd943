package sources

// Source describes one news outlet to ingest. Descriptors live as YAML
// files in the sources directory, one file per outlet; the outlet id is
// derived from the filename.
type Source struct {
	ID      string
	Name    string `yaml:"name"`
	LogoURL string `yaml:"logo_url"`
	FeedURL string `yaml:"feed_url"`
	Country string `yaml:"country"`
	Enabled bool   `yaml:"enabled"`
}
