// Package configs embeds the configuration file templates shipped with
// gallerysearch.
//
// The project template is written by `gallerysearch config init`. Its values
// mirror config.NewConfig so a freshly initialised directory behaves exactly
// like one with no config file.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented .gallerysearch.yaml template.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
