package badger

import "time"

// Config holds the Badger cache settings.
type Config struct {
	Dir        string        `env:"BADGER_DIR" envDefault:"./data/sessions"`
	InMemory   bool          `env:"BADGER_IN_MEMORY" envDefault:"false"`
	GCInterval time.Duration `env:"BADGER_GC_INTERVAL" envDefault:"10m"`
}
