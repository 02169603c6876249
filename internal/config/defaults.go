package config

const (
	defaultConfigPath        = "~/.config/cloudpose/config.toml"
	defaultLogDir            = "~/.local/share/cloudpose/logs"
	defaultDataDir           = "~/.local/share/cloudpose"
	defaultPoseBaseURL       = "http://localhost:60000"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLoadTestImageDir  = "image"
	defaultLoadTestUsers     = 10
	defaultLoadTestSpawnRate = 10
	defaultLoadTestDuration  = 60
	defaultLoadTestWaitMin   = 1000
	defaultLoadTestWaitMax   = 3000
	defaultLoadTestMaxUsers  = 500
	defaultLoadTestUserStep  = 10
	defaultUIImageDir        = "."

	// EnvBaseURL overrides pose.base_url when set.
	EnvBaseURL = "CLOUDPOSE_BASE_URL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			DataDir: defaultDataDir,
		},
		Pose: Pose{
			BaseURL: defaultPoseBaseURL,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		LoadTest: LoadTest{
			ImageDir:        defaultLoadTestImageDir,
			Users:           defaultLoadTestUsers,
			SpawnRate:       defaultLoadTestSpawnRate,
			DurationSeconds: defaultLoadTestDuration,
			WaitMinMillis:   defaultLoadTestWaitMin,
			WaitMaxMillis:   defaultLoadTestWaitMax,
			MaxUsers:        defaultLoadTestMaxUsers,
			UserStep:        defaultLoadTestUserStep,
		},
		UI: UI{
			ImageDir: defaultUIImageDir,
		},
	}
}
