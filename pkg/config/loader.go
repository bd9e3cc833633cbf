package config

import (
	"errors"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// loaded caches one parsed value per configuration type.
	loaded sync.Map // reflect.Type -> *entry

	dotenvOnce sync.Once
)

type entry struct {
	once  sync.Once
	value any
	err   error
}

// Load fills v from environment variables, reading a .env file from the
// working directory first if one exists. Each configuration type is parsed
// once per process; later calls copy the cached value.
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// A missing .env file is fine.
		_ = godotenv.Load()
	})

	e, _ := loaded.LoadOrStore(reflect.TypeFor[T](), &entry{})
	ent := e.(*entry)
	ent.once.Do(func() {
		var parsed T
		if err := env.Parse(&parsed); err != nil {
			ent.err = errors.Join(ErrParsingConfig, err)
			return
		}
		ent.value = parsed
	})

	if ent.err != nil {
		return ent.err
	}
	*v = ent.value.(T)
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(err)
	}
}

// Parse reads T from the environment without caching. Variables can be
// supplied explicitly, which keeps tests independent of the process
// environment.
func Parse[T any](vars map[string]string, prefix string) (T, error) {
	var v T
	opts := env.Options{Prefix: prefix}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&v, opts); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}
