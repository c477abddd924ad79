package main

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	OutputDir   string `short:"o" default:"docs" help:"Directory for mirrored files and the manifest"`
	Config      string `short:"c" help:"YAML file overriding the built-in configuration"`
	EnvFile     string `default:".env" help:"Env file consulted for GITHUB_REPOSITORY and GITHUB_REF_NAME, if present"`
	MetricsFile string `help:"Write Prometheus metrics in textfile format after the run"`
	Repository  string `help:"Repository (owner/name) the mirror is published to (falls back to GITHUB_REPOSITORY)"`
	Ref         string `help:"Branch the mirror is published to (falls back to GITHUB_REF_NAME)"`
	Verbose     bool   `short:"v" help:"Log every request"`
}
