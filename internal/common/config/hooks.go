package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// CustomHooks are passed to viper.Unmarshal so that durations, comma separated lists and types implementing
// encoding.TextUnmarshaler can be written as plain strings in config files and environment variables.
var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)),
}
