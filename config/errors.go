package config

import "sentinelfs/sferr"

const component = "config"

func errInvalid(reason string) error {
	return sferr.New(sferr.CodeInvalidConfig, component, reason)
}

func errRead(path string, cause error) error {
	return sferr.Wrap(sferr.CodeInvalidConfig, component, "failed reading config file "+path, cause)
}

func errWrite(path string, cause error) error {
	return sferr.Wrap(sferr.CodeInvalidConfig, component, "failed writing config file "+path, cause)
}
