package config

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			AdminKey: "",
		},
		Game: GameConfig{
			WorldSize:        1000,
			MineDensity:      0.075,
			FlagTokenDensity: 0.02,
			SpawnPoints:      10,
			SpawnMargin:      50,
			ExplosionRadius:  3,
			ChainDelayMs:     100,
			FlagsPerToken:    1,
			Seed:             0,
		},
		Session: SessionConfig{
			IdleTimeoutSec:   30,
			MaxAgeHours:      24,
			SweepIntervalSec: 10,
		},
		Security: SecurityConfig{
			MoveLimit:         10,
			FlipLimit:         5,
			FlagLimit:         5,
			UnflagLimit:       5,
			GlobalLimit:       20,
			WindowSec:         1,
			ReplayWindowMs:    100,
			DuplicateWindowMs: 1000,
			RetentionMin:      5,
			ReplayStrikeLimit: 3,
		},
		App: AppConfig{
			LogLevel: "info",
		},
	}
}
