package cfg

import (
	"io"
	"os"

	"github.com/pelletier/go-toml"
)

const (
	DefLogFormat           = "logfmt"
	DefLogLevel            = "info"
	DefLogTimeKey          = "time"
	DefGitRemote           = "origin"
	DefTestDirectoriesFile = "directories.txt"
)

type Config struct {
	GithubAPIToken      string `toml:"github_api_token"`
	LogFormat           string `toml:"log_format"`
	LogLevel            string `toml:"log_level"`
	LogTimeKey          string `toml:"log_time_key"`
	GitRemote           string `toml:"git_remote"`
	TestDirectoriesFile string `toml:"test_directories_file"`
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.applyDefaults()

	return &result, nil
}

// LoadFile loads the configuration from path.
// A missing file is not an error, the defaults are returned instead.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			result := Config{}
			result.applyDefaults()
			return &result, nil
		}

		return nil, err
	}
	defer file.Close()

	return Load(file)
}

func (r *Config) applyDefaults() {
	if r.LogFormat == "" {
		r.LogFormat = DefLogFormat
	}
	if r.LogLevel == "" {
		r.LogLevel = DefLogLevel
	}
	if r.LogTimeKey == "" {
		r.LogTimeKey = DefLogTimeKey
	}
	if r.GitRemote == "" {
		r.GitRemote = DefGitRemote
	}
	if r.TestDirectoriesFile == "" {
		r.TestDirectoriesFile = DefTestDirectoriesFile
	}
}

func (r *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(r)
}
