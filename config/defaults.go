package config

const (
	DefaultBaseURL       = "http://localhost:8000"
	DefaultRecordCommand = "arecord -q -f S16_LE -r 48000 -c 1 -t wav -"
	DefaultPlayCommand   = "ffplay -nodisp -autoexit -loglevel quiet -"
	DefaultFragmentMS    = 100
)

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/crawlchat",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Backend: BackendConfig{
			BaseURL: DefaultBaseURL,
		},
		Voice: VoiceConfig{
			RecordCommand: DefaultRecordCommand,
			PlayCommand:   DefaultPlayCommand,
			FragmentMS:    DefaultFragmentMS,
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# crawlchat System Configuration
# Location: ~/.config/crawlchat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the user config, transcript archive and debug log live
data_directory = "~/.local/share/crawlchat"
`
}

func GenerateUserConfigTemplate() string {
	return `# crawlchat User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[backend]
# Base address of the crawl/answer server.
# CRAWLCHAT_API_BASE overrides this value.
base_url = "http://localhost:8000"

[voice]
# Command that writes captured microphone audio to stdout
record_command = "arecord -q -f S16_LE -r 48000 -c 1 -t wav -"

# Command that plays audio read from stdin and exits when done
play_command = "ffplay -nodisp -autoexit -loglevel quiet -"

# Capture fragment cadence in milliseconds
fragment_ms = 100
`
}
