package args

import "flag"

var (
	production     bool
	configFilePath string
)

func Init() {
	flag.BoolVar(&production, "production", false, "run in production mode")
	flag.StringVar(&configFilePath, "config", "", "path to the yaml config file")
	flag.Parse()
}

func IsProduction() bool {
	return production
}

func ConfigFilePath() string {
	return configFilePath
}
