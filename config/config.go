// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardinalhq/avroingest/internal/avrostage"
	"github.com/cardinalhq/avroingest/internal/dataset"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Ingest             avrostage.Config `mapstructure:"ingest"`
	DuckDB             DuckDBConfig     `mapstructure:"duckdb"`
	StorageProfileFile string           `mapstructure:"storage_profile_file"`
}

// Binder registers extra sources, typically command line flags, on v before
// it is read.
type Binder func(v *viper.Viper) error

// Load reads configuration from a file, environment variables, and whatever
// binders add. Environment variables use the prefix "AVROINGEST" and the dot
// character in keys is replaced by an underscore. For example,
// "ingest.input_path" becomes "AVROINGEST_INGEST_INPUT_PATH".
//
// With an empty configFile, avroingest.yaml in the working directory is used
// if present. A named configFile that cannot be read is a ConfigError.
func Load(configFile string, binders ...Binder) (*Config, error) {
	cfg := &Config{
		Ingest: avrostage.DefaultConfig(),
		DuckDB: DefaultDuckDBConfig(),
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	for _, bind := range binders {
		if err := bind(v); err != nil {
			return nil, dataset.NewConfigError("flags", err.Error())
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, dataset.NewConfigError("config", fmt.Sprintf("read %s: %v", v.ConfigFileUsed(), err))
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, dataset.NewConfigError("config", err.Error())
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling. Maps cannot be
// expressed as a single variable and are skipped.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		switch f.Type.Kind() {
		case reflect.Struct:
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		case reflect.Map:
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
