package config

import "github.com/hashicorp/go-hclog"

func nullLogger() hclog.Logger { return hclog.NewNullLogger() }
